package minicurl

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/tanq16/minicurl/internal/request"
	"github.com/tanq16/minicurl/internal/response"
	"github.com/tanq16/minicurl/internal/transfer"
	"github.com/tanq16/minicurl/internal/utils"
)

type (
	Envelope    = response.Envelope
	Descriptor  = request.Descriptor
	RetryPolicy = transfer.RetryPolicy
	Transport   = transfer.Transport
)

// Client runs requests through one transfer engine. It keeps no per-call
// state and may be shared between goroutines.
type Client struct {
	engine  *transfer.Engine
	logger  zerolog.Logger
	headers []string
}

type settings struct {
	transport transfer.Transport
	http      utils.HTTPClientConfig
	engine    transfer.Options
	headers   []string
}

type Option func(*settings)

// WithTransport replaces the net/http transport.
func WithTransport(t Transport) Option {
	return func(s *settings) { s.transport = t }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.engine.Logger = l }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.engine.Timeout = d
		s.http.Timeout = d
	}
}

func WithRetry(p RetryPolicy) Option {
	return func(s *settings) { s.engine.Retry = p }
}

func WithUserAgent(ua string) Option {
	return func(s *settings) { s.http.UserAgent = ua }
}

func WithProxy(proxyURL, username, password string) Option {
	return func(s *settings) {
		s.http.ProxyURL = proxyURL
		s.http.ProxyUsername = username
		s.http.ProxyPassword = password
	}
}

// WithHeaders adds header lines sent before the per-call headers of every
// request.
func WithHeaders(lines ...string) Option {
	return func(s *settings) { s.headers = append(s.headers, lines...) }
}

func WithContentLengthOverride(enabled bool) Option {
	return func(s *settings) { s.engine.ContentLengthOverride = enabled }
}

// WithStrictStatus makes 404/401/403 status codes invalidate a response in
// addition to the body markers.
func WithStrictStatus(enabled bool) Option {
	return func(s *settings) { s.engine.StrictStatus = enabled }
}

// WithProgress registers a callback invoked as body bytes arrive. expected
// is -1 when the length is unknown.
func WithProgress(fn func(received, expected int64)) Option {
	return func(s *settings) { s.engine.ProgressFunc = fn }
}

// WithMaxBodySize caps in-memory bodies at n bytes. A response growing past
// it aborts the transfer. 0 means no cap.
func WithMaxBodySize(n int) Option {
	return func(s *settings) { s.engine.MaxBodySize = n }
}

func New(opts ...Option) *Client {
	s := &settings{engine: transfer.DefaultOptions()}
	s.http.Timeout = s.engine.Timeout
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = utils.NewMiniHTTPClient(s.http)
	}
	return &Client{
		engine:  transfer.NewEngine(s.transport, s.engine),
		logger:  s.engine.Logger.With().Str("op", "minicurl").Logger(),
		headers: s.headers,
	}
}

// Fetch executes desc and returns the full envelope. With diskSink set the
// body is appended to desc.FilePath instead of memory.
func (c *Client) Fetch(ctx context.Context, desc *Descriptor, diskSink bool) *Envelope {
	sink := transfer.MemorySink()
	if diskSink {
		sink = transfer.FileSink(desc.FilePath)
	}
	env, state := c.engine.Execute(ctx, desc, sink)
	c.logger.Debug().Str("url", desc.URL).Int("status", env.Status).Int("attempts", env.Attempts).
		Msgf("Transfer %s", state)
	return env
}

func (c *Client) Get(ctx context.Context, url string, headers ...string) string {
	return c.Fetch(ctx, c.build(url, "", "", headers), false).Text()
}

// GetHeader returns the raw response header block of a GET.
func (c *Client) GetHeader(ctx context.Context, url string, headers ...string) string {
	return c.Fetch(ctx, c.build(url, "", "", headers), false).HeaderText()
}

// Post sends payload and returns the response body. Without headers it
// sends "Content-Type: text/plain".
func (c *Client) Post(ctx context.Context, url, payload string, headers ...string) string {
	if len(headers) == 0 {
		headers = utils.DefaultSendHeaders
	}
	return c.Fetch(ctx, c.build(url, payload, "", headers), false).Text()
}

// Upload PUTs the file at filePath and returns the response body. Without
// headers it sends "Content-Type: text/plain".
func (c *Client) Upload(ctx context.Context, url, filePath string, headers ...string) string {
	if len(headers) == 0 {
		headers = utils.DefaultSendHeaders
	}
	return c.Fetch(ctx, c.build(url, "", filePath, headers), false).Text()
}

// Download saves the body of url and returns the path written, or "" when
// the response is empty or carries an error page. filePath defaults to the
// last path segment of url. With saveDirectlyToDisk the body is streamed
// into filePath during the transfer, resuming on top of any bytes it
// already holds; otherwise it is buffered and written once complete.
func (c *Client) Download(ctx context.Context, url, filePath string, saveDirectlyToDisk bool, headers ...string) string {
	if url == "" {
		return ""
	}
	if filePath == "" {
		filePath = utils.FileNameFromURL(url)
	}

	desc := c.build(url, "", "", headers)
	if saveDirectlyToDisk {
		desc.FilePath = filePath
	}
	env := c.Fetch(ctx, desc, saveDirectlyToDisk)
	class := env.Classify()
	if env.SavedToDisk && (class == response.ClassNotFound || class == response.ClassNotAuthorized) {
		c.discardWritten(env)
	}
	switch {
	case class == response.ClassNotFound:
		c.logger.Error().Msgf("File not found: %s", url)
		return ""
	case class == response.ClassNotAuthorized:
		c.logger.Error().Msgf("Access not authorized: %s", url)
		return ""
	case class == response.ClassEmpty || env.Err != nil:
		c.logger.Error().Err(env.Err).Msgf("No data returned: %s", url)
		return ""
	}
	if env.SavedToDisk {
		return env.FilePath
	}

	f, err := os.Create(filePath)
	if err != nil {
		c.logger.Error().Err(err).Msgf("Cannot create %s", filePath)
		return ""
	}
	defer f.Close()
	if err := env.Save(f); err != nil {
		c.logger.Error().Err(err).Msgf("Error writing %s", filePath)
		return ""
	}
	return filePath
}

// discardWritten drops an error page streamed to disk so it does not become
// the resume prefix of the next download: the file goes back to the bytes it
// held before, or is removed when it held none.
func (c *Client) discardWritten(env *Envelope) {
	var err error
	if env.Resumed > 0 {
		err = os.Truncate(env.FilePath, env.Resumed)
	} else {
		err = os.Remove(env.FilePath)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msgf("Cannot discard error page in %s", env.FilePath)
	}
}

func (c *Client) build(url, payload, filePath string, headers []string) *Descriptor {
	lines := make([]string, 0, len(c.headers)+len(headers))
	lines = append(lines, c.headers...)
	lines = append(lines, headers...)
	return request.Build(url, payload, filePath, lines)
}
