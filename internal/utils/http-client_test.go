package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/minicurl/internal/transfer"
)

type collected struct {
	header strings.Builder
	body   strings.Builder
}

func (c *collected) callbacks() transfer.Callbacks {
	return transfer.Callbacks{
		Header: func(p []byte) int {
			c.header.Write(p)
			return len(p)
		},
		Body: func(p []byte) int {
			c.body.Write(p)
			return len(p)
		},
	}
}

func TestPerformGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.Header.Get("X-Token"); got != "abc" {
			t.Errorf("expected X-Token 'abc', got %q", got)
		}
		if v, ok := r.Header["X-Empty"]; !ok || len(v) != 1 || v[0] != "" {
			t.Errorf("expected empty X-Empty header, got %v", r.Header["X-Empty"])
		}
		if got := r.Header.Get("User-Agent"); got != ToolUserAgent {
			t.Errorf("expected default user agent, got %q", got)
		}
		if r.Header.Get("Range") != "" {
			t.Errorf("expected no Range header, got %q", r.Header.Get("Range"))
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "hello")
	}))
	defer server.Close()

	client := NewMiniHTTPClient(HTTPClientConfig{})
	var c collected
	status, err := client.Perform(context.Background(), &transfer.Attempt{
		Method:  http.MethodGet,
		URL:     server.URL,
		Headers: []string{"X-Token: abc", "X-Empty;"},
		Timeout: 5 * time.Second,
	}, c.callbacks())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}

	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if c.body.String() != "hello" {
		t.Errorf("expected body 'hello', got %q", c.body.String())
	}
	header := c.header.String()
	if !strings.HasPrefix(header, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("expected status line first, got %q", header)
	}
	if !strings.Contains(header, "Content-Length: 5\r\n") || !strings.HasSuffix(header, "\r\n\r\n") {
		t.Errorf("expected complete header block, got %q", header)
	}
}

func TestPerformUserAgentOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "custom/2" {
			t.Errorf("expected header line to win, got %q", got)
		}
	}))
	defer server.Close()

	client := NewMiniHTTPClient(HTTPClientConfig{UserAgent: "configured/1"})
	var c collected
	if _, err := client.Perform(context.Background(), &transfer.Attempt{
		Method: http.MethodGet, URL: server.URL, Headers: []string{"User-Agent: custom/2"},
	}, c.callbacks()); err != nil {
		t.Fatalf("Perform: %v", err)
	}
}

func TestPerformSendsRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=5-" {
			t.Errorf("expected Range 'bytes=5-', got %q", got)
		}
		w.Header().Set("Content-Range", "bytes 5-9/10")
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, "56789")
	}))
	defer server.Close()

	var c collected
	status, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method: http.MethodGet, URL: server.URL, ResumeFrom: 5,
	}, c.callbacks())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if status != http.StatusPartialContent || c.body.String() != "56789" {
		t.Errorf("expected 206 '56789', got %d %q", status, c.body.String())
	}
}

func TestPerformPostAndContentLengthOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "payload" {
			t.Errorf("expected payload, got %q", body)
		}
		if len(r.TransferEncoding) == 0 || r.TransferEncoding[0] != "chunked" {
			t.Errorf("expected chunked framing after override, got %v (length %d)", r.TransferEncoding, r.ContentLength)
		}
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	var c collected
	_, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method:  http.MethodPost,
		URL:     server.URL,
		Payload: []byte("payload"),
		Headers: []string{"Content-Length: 7", "Content-Length: -1"},
	}, c.callbacks())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
}

func TestPerformUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.ContentLength != 11 {
			t.Errorf("expected content length 11, got %d", r.ContentLength)
		}
		body, _ := io.ReadAll(r.Body)
		io.WriteString(w, "got "+string(body))
	}))
	defer server.Close()

	var c collected
	status, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method:     http.MethodPut,
		URL:        server.URL,
		Upload:     strings.NewReader("upload body"),
		UploadSize: 11,
	}, c.callbacks())
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if status != http.StatusOK || c.body.String() != "got upload body" {
		t.Errorf("expected echo of upload, got %d %q", status, c.body.String())
	}
}

func TestPerformShortBodyIsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n")
		buf.WriteString(strings.Repeat("x", 50))
		buf.Flush()
	}))
	defer server.Close()

	var c collected
	_, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method: http.MethodGet, URL: server.URL, Timeout: 5 * time.Second,
	}, c.callbacks())

	if !errors.Is(err, transfer.ErrPartialFile) {
		t.Fatalf("expected ErrPartialFile, got %v", err)
	}
	if c.body.Len() != 50 {
		t.Errorf("expected 50 bytes delivered, got %d", c.body.Len())
	}
	if !strings.Contains(c.header.String(), "Content-Length: 100") {
		t.Errorf("expected declared length in headers, got %q", c.header.String())
	}
}

func TestPerformTimeoutMidBodyIsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "10")
		io.WriteString(w, "12345")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	var c collected
	_, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method: http.MethodGet, URL: server.URL, Timeout: 200 * time.Millisecond,
	}, c.callbacks())

	if !errors.Is(err, transfer.ErrPartialFile) {
		t.Fatalf("expected ErrPartialFile, got %v", err)
	}
	if c.body.String() != "12345" {
		t.Errorf("expected first half delivered, got %q", c.body.String())
	}
}

func TestPerformConnectionRefusedIsFatal(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var c collected
	status, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method: http.MethodGet, URL: url, Timeout: time.Second,
	}, c.callbacks())

	if err == nil || errors.Is(err, transfer.ErrPartialFile) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if status != 0 {
		t.Errorf("expected status 0, got %d", status)
	}
}

func TestPerformCallbackAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "body")
	}))
	defer server.Close()

	_, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method: http.MethodGet, URL: server.URL,
	}, transfer.Callbacks{
		Header: func(p []byte) int { return len(p) },
		Body:   func(p []byte) int { return 0 },
	})

	if !errors.Is(err, transfer.ErrWriteAborted) {
		t.Errorf("expected ErrWriteAborted, got %v", err)
	}
}

func TestPerformTracesExchangeAtDebug(t *testing.T) {
	var logs bytes.Buffer
	previous, previousLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&logs)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(previousLevel)
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hello")
	}))
	defer server.Close()

	var c collected
	if _, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method:  http.MethodPost,
		URL:     server.URL + "/trace?q=1",
		Headers: []string{"X-Token: abc"},
		Payload: []byte("payload"),
	}, c.callbacks()); err != nil {
		t.Fatalf("Perform: %v", err)
	}

	out := logs.String()
	for _, want := range []string{
		`"op":"utils/http-client"`,
		"POST /trace?q=1 HTTP/1.1",
		"X-Token: abc",
		"=> Send data, 7 bytes",
		"<= Recv header, ",
		"<= Recv data, 5 bytes",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected debug trace to contain %q, got %s", want, out)
		}
	}
}

func TestPerformSilentAboveDebug(t *testing.T) {
	var logs bytes.Buffer
	previous, previousLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&logs)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	t.Cleanup(func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(previousLevel)
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hello")
	}))
	defer server.Close()

	var c collected
	if _, err := NewMiniHTTPClient(HTTPClientConfig{}).Perform(context.Background(), &transfer.Attempt{
		Method: http.MethodGet, URL: server.URL,
	}, c.callbacks()); err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("expected no trace output at info level, got %s", logs.String())
	}
}
