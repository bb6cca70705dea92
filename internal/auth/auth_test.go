package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/tanq16/minicurl/internal/config"
)

func tokenServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("expected client_credentials grant, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token":"tok123","token_type":"bearer","expires_in":3600}`)
	}))
}

func TestStaticToken(t *testing.T) {
	src, err := NewTokenSource(context.Background(), config.AuthConfig{Token: "abc"}, "")
	if err != nil {
		t.Fatalf("NewTokenSource: %v", err)
	}
	line, err := HeaderLine(src)
	if err != nil {
		t.Fatalf("HeaderLine: %v", err)
	}
	if line != "Authorization: Bearer abc" {
		t.Errorf("expected bearer header line, got %q", line)
	}
}

func TestNoCredentials(t *testing.T) {
	_, err := NewTokenSource(context.Background(), config.AuthConfig{}, "")
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("expected ErrNoCredentials, got %v", err)
	}
}

func TestClientCredentials(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	src, err := NewTokenSource(context.Background(), config.AuthConfig{
		TokenURL:     server.URL,
		ClientID:     "id",
		ClientSecret: "secret",
	}, "")
	if err != nil {
		t.Fatalf("NewTokenSource: %v", err)
	}
	line, err := HeaderLine(src)
	if err != nil {
		t.Fatalf("HeaderLine: %v", err)
	}
	if line != "Authorization: Bearer tok123" {
		t.Errorf("expected fetched token, got %q", line)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected 1 token request, got %d", hits)
	}
}

func TestTokenCache(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	cfg := config.AuthConfig{TokenURL: server.URL, ClientID: "id", ClientSecret: "secret"}
	cacheFile := filepath.Join(t.TempDir(), "tokens", "token.json")

	src, err := NewTokenSource(context.Background(), cfg, cacheFile)
	if err != nil {
		t.Fatalf("NewTokenSource: %v", err)
	}
	if _, err := HeaderLine(src); err != nil {
		t.Fatalf("HeaderLine: %v", err)
	}
	if _, err := os.Stat(cacheFile); err != nil {
		t.Fatalf("expected token cached, got %v", err)
	}

	src, err = NewTokenSource(context.Background(), cfg, cacheFile)
	if err != nil {
		t.Fatalf("NewTokenSource: %v", err)
	}
	line, err := HeaderLine(src)
	if err != nil {
		t.Fatalf("HeaderLine: %v", err)
	}
	if line != "Authorization: Bearer tok123" {
		t.Errorf("expected cached token, got %q", line)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("expected cached token to be reused, got %d token requests", got)
	}
}

func TestTokenEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	src, err := NewTokenSource(context.Background(), config.AuthConfig{TokenURL: server.URL, ClientID: "id"}, "")
	if err != nil {
		t.Fatalf("NewTokenSource: %v", err)
	}
	if _, err := HeaderLine(src); err == nil {
		t.Error("expected error from rejected token request")
	}
}
