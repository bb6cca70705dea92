package request

import (
	"errors"
	"net/http"
	"strings"
)

// ContentLengthOverride is appended to the outgoing headers when the caller
// supplied its own Content-Length, so the transport does not frame the body
// twice.
const ContentLengthOverride = "Content-Length: -1"

var ErrEmptyURL = errors.New("request: empty URL")

// Descriptor is a normalized request: target, optional payload, optional
// file reference and raw header lines.
type Descriptor struct {
	URL     string
	Payload []byte
	// FilePath is the upload source when there is no payload, or the
	// destination of a disk-backed download.
	FilePath string
	Headers  []string

	NeedsContentLengthOverride bool
}

// Build normalizes the header lines and flags a caller supplied
// Content-Length.
func Build(url, payload, filePath string, headerLines []string) *Descriptor {
	d := &Descriptor{
		URL:      url,
		FilePath: filePath,
		Headers:  make([]string, 0, len(headerLines)),
	}
	if payload != "" {
		d.Payload = []byte(payload)
	}
	for _, line := range headerLines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if HeaderName(line) == "Content-Length" {
			d.NeedsContentLengthOverride = true
		}
		d.Headers = append(d.Headers, NormalizeHeaderLine(line))
	}
	return d
}

// NormalizeHeaderLine rewrites a value-less line ("Name" or "Name:") to the
// "Name;" form. Lines carrying a value or already ending in ';' are returned
// unchanged.
func NormalizeHeaderLine(line string) string {
	tokens := strings.Split(line, ":")
	valueless := len(tokens) == 1 || (len(tokens) == 2 && strings.TrimSpace(tokens[1]) == "")
	name := strings.TrimSpace(tokens[0])
	if !valueless || strings.HasSuffix(name, ";") {
		return line
	}
	return name + ";"
}

// HeaderName returns the name part of a raw header line in either form.
func HeaderName(line string) string {
	name, _, _ := strings.Cut(line, ":")
	return strings.TrimSuffix(strings.TrimSpace(name), ";")
}

// OutgoingHeaders returns the header lines to transmit, with the
// Content-Length override appended last when it is flagged and enabled.
func (d *Descriptor) OutgoingHeaders(override bool) []string {
	out := make([]string, len(d.Headers), len(d.Headers)+1)
	copy(out, d.Headers)
	if override && d.NeedsContentLengthOverride {
		out = append(out, ContentLengthOverride)
	}
	return out
}

// Method infers the HTTP method. A payload means POST; a file without a
// disk-backed download sink means an upload (PUT); anything else is a GET.
func (d *Descriptor) Method(diskSink bool) string {
	switch {
	case len(d.Payload) > 0:
		return http.MethodPost
	case d.FilePath != "" && !diskSink:
		return http.MethodPut
	default:
		return http.MethodGet
	}
}

func (d *Descriptor) Validate() error {
	if d.URL == "" {
		return ErrEmptyURL
	}
	return nil
}
