package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/minicurl/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNoCredentials = errors.New("auth: no token or client credentials configured")

// NewTokenSource returns a token source for cfg. A static token wins over
// the client credentials flow. When cacheFile is set, a still valid cached
// token is reused and fresh tokens are written back.
func NewTokenSource(ctx context.Context, cfg config.AuthConfig, cacheFile string) (oauth2.TokenSource, error) {
	if cfg.Token != "" {
		log.Debug().Str("op", "auth").Msg("using static bearer token")
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}), nil
	}
	if cfg.TokenURL == "" {
		return nil, ErrNoCredentials
	}
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	var src oauth2.TokenSource = cc.TokenSource(ctx)
	if cacheFile == "" {
		return src, nil
	}
	cached, err := tokenFromFile(cacheFile)
	if err != nil {
		log.Debug().Str("op", "auth").Msgf("no cached token in %s", cacheFile)
		cached = nil
	}
	return &cachingSource{base: oauth2.ReuseTokenSource(cached, src), file: cacheFile}, nil
}

// HeaderLine fetches a token and renders it as an Authorization header line.
func HeaderLine(src oauth2.TokenSource) (string, error) {
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("unable to get OAuth token: %w", err)
	}
	if !token.Valid() {
		return "", errors.New("OAuth token is expired and cannot be refreshed")
	}
	return "Authorization: " + token.Type() + " " + token.AccessToken, nil
}

type cachingSource struct {
	base oauth2.TokenSource
	file string
	last string
}

func (c *cachingSource) Token() (*oauth2.Token, error) {
	token, err := c.base.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != c.last {
		c.last = token.AccessToken
		if err := saveToken(c.file, token); err != nil {
			log.Warn().Str("op", "auth").Msgf("unable to save token: %v", err)
		}
	}
	return token, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	log.Debug().Str("op", "auth").Msg("token retrieved from file")
	return token, nil
}

func saveToken(file string, token *oauth2.Token) error {
	dir := filepath.Dir(file)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("unable to encode token: %w", err)
	}
	return nil
}
