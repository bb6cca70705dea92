package transfer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/minicurl/internal/buffer"
	"github.com/tanq16/minicurl/internal/header"
	"github.com/tanq16/minicurl/internal/request"
	"github.com/tanq16/minicurl/internal/response"
)

type State int

const (
	Idle State = iota
	Executing
	PartialRetry
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Executing:
		return "executing"
	case PartialRetry:
		return "partial-retry"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RetryPolicy bounds the resume loop.
type RetryPolicy struct {
	// Attempts is how many consecutive attempts may end without receiving
	// a single new byte. 0 disables the check.
	Attempts int
	// MaxAttempts caps the total number of attempts. 0 means no cap.
	MaxAttempts int
	// Backoff is the initial wait before a stalled retry; it doubles per
	// consecutive stall up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
}

type Options struct {
	// Timeout bounds each attempt. It is kept short so a slow body turns
	// into a resumed attempt instead of one long blocking call.
	Timeout time.Duration
	Retry   RetryPolicy
	// ContentLengthOverride appends "Content-Length: -1" when the caller
	// supplied a Content-Length header.
	ContentLengthOverride bool
	StrictStatus          bool
	// MaxBodySize caps an in-memory body; 0 means no cap. Disk sinks are
	// not limited.
	MaxBodySize  int
	Logger       zerolog.Logger
	ProgressFunc func(received, expected int64)
}

func DefaultOptions() Options {
	return Options{
		Timeout: time.Second,
		Retry: RetryPolicy{
			Attempts:    5,
			MaxAttempts: 256,
			Backoff:     500 * time.Millisecond,
			MaxBackoff:  10 * time.Second,
		},
		ContentLengthOverride: true,
		Logger:                log.Logger,
	}
}

// Engine runs transfers through a Transport. An Engine holds no per-call
// state, so independent calls may share it.
type Engine struct {
	transport Transport
	opts      Options
}

func NewEngine(t Transport, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Engine{transport: t, opts: opts}
}

// Execute performs the request described by d, resuming partial bodies
// until the declared length is reached, the retry policy gives up, or the
// transport fails. It always returns an envelope; Status is 0 on failure.
func (e *Engine) Execute(ctx context.Context, d *request.Descriptor, s Sink) (*response.Envelope, State) {
	logger := e.opts.Logger.With().Str("op", "transfer/engine").Str("transfer", uuid.NewString()).Logger()
	env := response.New()
	env.StrictStatus = e.opts.StrictStatus
	if e.opts.MaxBodySize > 0 {
		env.Content = buffer.WithLimit(e.opts.MaxBodySize)
	}

	if err := d.Validate(); err != nil {
		env.Err = err
		return env, Failed
	}

	var out sinkWriter
	if s.IsFile() {
		fs, err := openFileSink(s.Path())
		if err != nil {
			logger.Warn().Err(err).Msgf("Cannot open %s, no output will be written", s.Path())
			env.Err = err
			return env, Failed
		}
		out = fs
		env.SavedToDisk = true
		env.FilePath = s.Path()
	} else {
		out = &memorySink{buf: env.Content}
	}

	state := e.run(ctx, d, s.IsFile(), out, env, logger)

	if err := out.Close(); err != nil && state == Completed {
		logger.Error().Err(err).Msg("Error closing output file")
		env.Err = err
		env.Status = 0
		state = Failed
	}
	if env.SavedToDisk {
		env.Written = out.Size()
		env.Resumed = out.Resumed()
		env.Sniff = sniffFile(env.FilePath, env.Resumed)
	}
	return env, state
}

func (e *Engine) run(ctx context.Context, d *request.Descriptor, diskSink bool, out sinkWriter, env *response.Envelope, logger zerolog.Logger) State {
	method := d.Method(diskSink)
	headers := d.OutgoingHeaders(e.opts.ContentLengthOverride)
	received := out.Size()
	if received > 0 {
		logger.Debug().Msgf("Output file already holds %d bytes, resuming", received)
	}
	stalled := 0

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(env, err)
		}
		if limit := e.opts.Retry.MaxAttempts; limit > 0 && attempt > limit {
			return fail(env, fmt.Errorf("%w: %d attempts", ErrRetriesExhausted, limit))
		}

		a := &Attempt{
			Method:     method,
			URL:        d.URL,
			Headers:    headers,
			Payload:    d.Payload,
			ResumeFrom: received,
			Timeout:    e.opts.Timeout,
		}
		var upload *os.File
		if method == http.MethodPut {
			upload = openUpload(d.FilePath, a, logger)
		}

		res := &attemptResult{offset: received}
		cb := Callbacks{
			Header: func(p []byte) int {
				n := env.Header.Append(p)
				if n == len(p) {
					res.header.Append(p)
				}
				return n
			},
			Body: func(p []byte) int {
				if !res.bodyStarted {
					res.bodyStarted = true
					if err := res.start(out); err != nil {
						logger.Error().Err(err).Msg("Error restarting output")
						return 0
					}
					if res.restarted {
						logger.Warn().Msg("Server does not support resume (status 200). Restarting transfer.")
						received = 0
					}
				}
				if res.discard {
					return len(p)
				}
				n := out.Append(p)
				received += int64(n)
				if e.opts.ProgressFunc != nil {
					e.opts.ProgressFunc(received, res.expected)
				}
				return n
			},
		}

		before := received
		status, err := e.transport.Perform(ctx, a, cb)
		if upload != nil {
			upload.Close()
		}
		env.Attempts = attempt

		if err != nil && !errors.Is(err, ErrPartialFile) {
			logger.Error().Err(err).Msgf("Transfer attempt %d failed", attempt)
			return fail(env, err)
		}
		if err == nil {
			env.Status = status
		}

		code := header.StatusCode(res.header.Bytes())
		if res.offset > 0 && code == http.StatusRequestedRangeNotSatisfiable {
			logger.Debug().Msg("Range not satisfiable, output already complete")
			return Completed
		}
		if !res.bodyStarted && res.offset > 0 {
			// A resumed attempt without body bytes is judged on its status
			// alone.
			if err := res.start(out); err != nil {
				logger.Error().Err(err).Msg("Error restarting output")
				return fail(env, err)
			}
			if res.restarted {
				logger.Warn().Msg("Server does not support resume (status 200). Restarting transfer.")
				received = 0
			}
		}
		if !res.discard {
			expected, known := expectedLength(header.Parse(res.header.Bytes()), res.offset)
			if !known || received >= expected {
				logger.Debug().Msgf("Transfer complete after %d attempt(s), %d bytes", attempt, received)
				return Completed
			}
			logger.Debug().Msgf("Partial transfer: %d of %d bytes, resuming", received, expected)
		} else {
			logger.Warn().Msgf("Unexpected status %d on resumed attempt", code)
		}

		if received > before || res.restarted {
			stalled = 0
			continue
		}
		stalled++
		if e.opts.Retry.Attempts > 0 && stalled > e.opts.Retry.Attempts {
			return fail(env, fmt.Errorf("%w: no progress in %d attempts", ErrRetriesExhausted, stalled))
		}
		logger.Warn().Msgf("Retrying transfer for %s (attempt %d)", d.URL, attempt+1)
		if err := e.backoff(ctx, stalled); err != nil {
			return fail(env, err)
		}
	}
}

// attemptResult tracks what one attempt delivered.
type attemptResult struct {
	offset      int64
	header      buffer.Buffer
	bodyStarted bool
	restarted   bool
	discard     bool
	expected    int64
}

// start inspects the response headers once the first body byte arrives and
// decides how the body relates to the bytes already in the sink.
func (r *attemptResult) start(out sinkWriter) error {
	idx := header.Parse(r.header.Bytes())
	code := header.StatusCode(r.header.Bytes())
	if r.offset > 0 {
		switch code {
		case http.StatusPartialContent, 0:
		case http.StatusOK:
			if err := out.Reset(); err != nil {
				return err
			}
			r.offset = 0
			r.restarted = true
		default:
			r.discard = true
		}
	}
	r.expected = -1
	if n, ok := expectedLength(idx, r.offset); ok {
		r.expected = n
	}
	return nil
}

// expectedLength is the full body length implied by one attempt's headers:
// the Content-Range total when present, otherwise the offset the attempt
// resumed from plus its Content-Length.
func expectedLength(idx header.Index, offset int64) (int64, bool) {
	if total, ok := header.ContentRangeTotal(idx); ok {
		return total, true
	}
	n, ok := header.ContentLength(idx)
	if !ok {
		return 0, false
	}
	return offset + n, true
}

func openUpload(path string, a *Attempt, logger zerolog.Logger) *os.File {
	f, err := os.Open(path)
	if err == nil {
		var info os.FileInfo
		if info, err = f.Stat(); err == nil {
			a.Upload = f
			a.UploadSize = info.Size()
			return f
		}
		f.Close()
	}
	// Without a readable source the request goes out as a plain GET.
	logger.Warn().Err(err).Msgf("Cannot read upload file %s, sending request without it", path)
	a.Method = http.MethodGet
	return nil
}

func fail(env *response.Envelope, err error) State {
	env.Status = 0
	env.Err = err
	return Failed
}

// backoff waits for an exponentially increasing duration with jitter.
func (e *Engine) backoff(ctx context.Context, stalled int) error {
	base := e.opts.Retry.Backoff
	if base <= 0 {
		return nil
	}
	wait := base * time.Duration(1<<uint(min(stalled-1, 16)))
	if m := e.opts.Retry.MaxBackoff; m > 0 && wait > m {
		wait = m
	}
	jitter := time.Duration(float64(wait) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}
