package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/minicurl/internal/transfer"
)

type HTTPClientConfig struct {
	// Timeout is the default per-attempt timeout, used when an attempt
	// does not carry its own.
	Timeout       time.Duration
	ProxyURL      string
	ProxyUsername string
	ProxyPassword string
	UserAgent     string
}

// MiniHTTPClient performs single HTTP exchanges and streams the response to
// transfer callbacks. Connections are not reused across calls.
type MiniHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

func NewMiniHTTPClient(cfg HTTPClientConfig) *MiniHTTPClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	transport := &http.Transport{
		DisableKeepAlives:  true,
		DisableCompression: true,
		Proxy:              http.ProxyFromEnvironment,
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err == nil {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &MiniHTTPClient{
		client: &http.Client{
			Transport: transport,
		},
		config: cfg,
	}
}

// Perform implements transfer.Transport.
func (c *MiniHTTPClient) Perform(ctx context.Context, a *transfer.Attempt, cb transfer.Callbacks) (int, error) {
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(a.Payload) > 0 {
		body = bytes.NewReader(a.Payload)
	} else if a.Upload != nil {
		body = a.Upload
	}
	req, err := http.NewRequestWithContext(attemptCtx, a.Method, a.URL, body)
	if err != nil {
		return 0, fmt.Errorf("error creating %s request: %w", a.Method, err)
	}
	if len(a.Payload) == 0 && a.Upload != nil {
		req.ContentLength = a.UploadSize
		if a.UploadSize == 0 {
			req.Body = http.NoBody
		}
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	applyHeaderLines(req, a.Headers)
	if a.ResumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", a.ResumeFrom))
	}

	traceRequest(req, a)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error executing %s request: %w", a.Method, err)
	}
	defer resp.Body.Close()

	raw := headerBlock(resp)
	log.Debug().Str("op", "utils/http-client").Msgf("<= Recv header, %d bytes", len(raw))
	if cb.Header(raw) != len(raw) {
		return 0, transfer.ErrWriteAborted
	}

	buffer := make([]byte, DefaultBufferSize)
	var received int64
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			log.Debug().Str("op", "utils/http-client").Msgf("<= Recv data, %d bytes", bytesRead)
			if cb.Body(buffer[:bytesRead]) != bytesRead {
				return 0, transfer.ErrWriteAborted
			}
			received += int64(bytesRead)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			// The response has started, so whatever cut the body short
			// (deadline, reset, early EOF) leaves a resumable transfer.
			return 0, fmt.Errorf("%w: %d bytes received: %v", transfer.ErrPartialFile, received, readErr)
		}
	}
	if resp.ContentLength >= 0 && received < resp.ContentLength {
		return 0, fmt.Errorf("%w: %d of %d bytes", transfer.ErrPartialFile, received, resp.ContentLength)
	}
	return resp.StatusCode, nil
}

// traceRequest logs the outgoing request line, headers and body size at
// debug level.
func traceRequest(req *http.Request, a *transfer.Attempt) {
	event := log.Debug()
	if !event.Enabled() {
		return
	}
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	var sent bytes.Buffer
	fmt.Fprintf(&sent, "%s %s %s\r\nHost: %s\r\n", req.Method, req.URL.RequestURI(), req.Proto, host)
	req.Header.Write(&sent)
	event.Str("op", "utils/http-client").Msgf("=> Send header, %d bytes\n%s", sent.Len(), sent.String())

	size := int64(len(a.Payload))
	if size == 0 && a.Upload != nil {
		size = a.UploadSize
	}
	if size > 0 {
		log.Debug().Str("op", "utils/http-client").Msgf("=> Send data, %d bytes", size)
	}
}

// applyHeaderLines sets raw "Name: Value" and "Name;" lines on req. A
// "Name;" line sends the header with an empty value.
func applyHeaderLines(req *http.Request, lines []string) {
	seen := make(map[string]bool)
	for _, line := range lines {
		name, value, found := strings.Cut(line, ":")
		if !found {
			name = strings.TrimSuffix(strings.TrimSpace(line), ";")
			value = ""
		}
		name = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))
		value = strings.TrimSpace(value)
		if name == "" {
			continue
		}
		switch name {
		case "Host":
			req.Host = value
			continue
		case "Content-Length":
			n, err := strconv.ParseInt(value, 10, 64)
			// Framing only applies to requests that carry a body.
			if err == nil && req.Body != nil && req.Body != http.NoBody {
				req.ContentLength = n
			}
			continue
		}
		// The first caller line for a name replaces client defaults such
		// as User-Agent; later lines add values.
		if !seen[name] {
			req.Header.Del(name)
			seen[name] = true
		}
		req.Header[name] = append(req.Header[name], value)
	}
}

// headerBlock renders the response status line and headers the way they
// arrived on the wire.
func headerBlock(resp *http.Response) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\r\n", resp.Proto, resp.Status)
	h := resp.Header.Clone()
	if h.Get("Content-Length") == "" && resp.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}
	h.Write(&buf)
	buf.WriteString("\r\n")
	return buf.Bytes()
}
