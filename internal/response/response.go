package response

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tanq16/minicurl/internal/buffer"
)

const (
	NotFoundMarker      = "<title>404 "
	NotAuthorizedMarker = "<title>403 "
)

type Class int

const (
	ClassValid Class = iota
	ClassEmpty
	ClassNotFound
	ClassNotAuthorized
)

func (c Class) String() string {
	switch c {
	case ClassValid:
		return "valid"
	case ClassEmpty:
		return "empty"
	case ClassNotFound:
		return "not-found"
	case ClassNotAuthorized:
		return "not-authorized"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Envelope is the outcome of one transfer, spanning all of its resume
// attempts. Status is 0 when no usable response code was obtained.
type Envelope struct {
	Status  int
	Header  *buffer.Buffer
	Content *buffer.Buffer

	// Set when the body was streamed to FilePath instead of Content.
	SavedToDisk bool
	FilePath    string
	// Written is the file size after the transfer; Resumed is the part of
	// it that was already there and kept.
	Written int64
	Resumed int64
	// Sniff holds the leading bytes this transfer wrote to disk, for
	// classification.
	Sniff []byte

	// StrictStatus makes 404/401/403 status codes count as errors in
	// addition to the body markers.
	StrictStatus bool

	Attempts int
	Err      error
}

func New() *Envelope {
	return &Envelope{
		Header:  buffer.New(),
		Content: buffer.New(),
	}
}

// Text returns the in-memory body as text.
func (e *Envelope) Text() string {
	return e.Content.String()
}

func (e *Envelope) HeaderText() string {
	return e.Header.String()
}

func (e *Envelope) body() string {
	if e.SavedToDisk {
		return string(e.Sniff)
	}
	return e.Content.String()
}

func (e *Envelope) IsValid() bool {
	return !e.IsEmpty() && !e.HasErrors()
}

func (e *Envelope) IsEmpty() bool {
	if e.SavedToDisk {
		return e.Written == 0
	}
	return e.Content.Len() == 0
}

func (e *Envelope) HasErrors() bool {
	return e.IsNotFound() || e.IsNotAuthorized()
}

func (e *Envelope) IsNotFound() bool {
	if e.StrictStatus && e.Status == http.StatusNotFound {
		return true
	}
	return strings.Contains(e.body(), NotFoundMarker)
}

func (e *Envelope) IsNotAuthorized() bool {
	if e.StrictStatus && (e.Status == http.StatusForbidden || e.Status == http.StatusUnauthorized) {
		return true
	}
	return strings.Contains(e.body(), NotAuthorizedMarker)
}

// Classify reports the first matching class in the order not-found,
// not-authorized, empty, valid.
func (e *Envelope) Classify() Class {
	switch {
	case e.IsNotFound():
		return ClassNotFound
	case e.IsNotAuthorized():
		return ClassNotAuthorized
	case e.IsEmpty():
		return ClassEmpty
	default:
		return ClassValid
	}
}

// Save writes the in-memory body to w as is.
func (e *Envelope) Save(w io.Writer) error {
	if e.SavedToDisk {
		return fmt.Errorf("response: body already saved to %s", e.FilePath)
	}
	_, err := e.Content.WriteTo(w)
	return err
}
