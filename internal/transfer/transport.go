package transfer

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrPartialFile reports a body that ended before its declared length.
	// It is not fatal: the engine resumes from the bytes it already has.
	ErrPartialFile = errors.New("transfer: partial file")
	// ErrWriteAborted reports a callback that accepted fewer bytes than it
	// was offered. Transports must abort the attempt when they see it.
	ErrWriteAborted = errors.New("transfer: write callback aborted")
	// ErrRetriesExhausted reports a resume loop that hit its attempt ceiling.
	ErrRetriesExhausted = errors.New("transfer: retries exhausted")
)

// Attempt is one request issued to a Transport.
type Attempt struct {
	Method string
	URL    string
	// Headers are raw "Name: Value" or "Name;" lines.
	Headers []string
	Payload []byte
	// Upload is the request body for uploads; UploadSize is its length.
	Upload     io.Reader
	UploadSize int64
	// ResumeFrom asks the server for the body starting at this byte offset.
	ResumeFrom int64
	Timeout    time.Duration
}

// Callbacks receive response bytes as they arrive. Each returns how many
// bytes it accepted; anything short of len(p) aborts the attempt.
type Callbacks struct {
	// Header gets raw header lines, status lines included.
	Header func(p []byte) int
	Body   func(p []byte) int
}

// Transport performs exactly one HTTP exchange. It returns the final status
// code with a nil error, ErrPartialFile when the body was cut short after
// the response started, or any other error for a fatal failure.
type Transport interface {
	Perform(ctx context.Context, a *Attempt, cb Callbacks) (int, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, a *Attempt, cb Callbacks) (int, error)

func (f TransportFunc) Perform(ctx context.Context, a *Attempt, cb Callbacks) (int, error) {
	return f(ctx, a, cb)
}
