package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines configuration for the minicurl CLI.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Headers   []string
	Proxy     ProxyConfig
	Retry     RetryConfig
	Auth      AuthConfig
	// NoContentLengthOverride stops the "Content-Length: -1" header from
	// being added when a caller supplies Content-Length.
	NoContentLengthOverride bool
	StrictStatus            bool
	// MaxBodySize caps in-memory response bodies in bytes; 0 means no cap.
	MaxBodySize int
}

type ProxyConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RetryConfig bounds the resume loop.
type RetryConfig struct {
	Attempts    int
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// AuthConfig selects a bearer token source. A static Token wins over the
// client credentials flow.
type AuthConfig struct {
	Token        string   `yaml:"token"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

// Default returns a Config with the transfer engine defaults.
func Default() Config {
	return Config{
		Timeout: time.Second,
		Retry: RetryConfig{
			Attempts:    5,
			MaxAttempts: 256,
			Backoff:     500 * time.Millisecond,
			MaxBackoff:  10 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Timeout                 string          `yaml:"timeout"`
	UserAgent               string          `yaml:"user_agent"`
	Headers                 []string        `yaml:"headers"`
	Proxy                   ProxyConfig     `yaml:"proxy"`
	Retry                   yamlRetryConfig `yaml:"retry"`
	Auth                    AuthConfig      `yaml:"auth"`
	NoContentLengthOverride bool            `yaml:"no_content_length_override"`
	StrictStatus            bool            `yaml:"strict_status"`
	MaxBodySize             int             `yaml:"max_body_size"`
}

type yamlRetryConfig struct {
	Attempts    int    `yaml:"attempts"`
	MaxAttempts int    `yaml:"max_attempts"`
	Backoff     string `yaml:"backoff"`
	MaxBackoff  string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	cfg.Headers = yc.Headers
	cfg.Proxy = yc.Proxy
	cfg.Auth = yc.Auth
	cfg.NoContentLengthOverride = yc.NoContentLengthOverride
	cfg.StrictStatus = yc.StrictStatus
	cfg.MaxBodySize = yc.MaxBodySize
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.MaxAttempts != 0 {
		cfg.Retry.MaxAttempts = yc.Retry.MaxAttempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MINICURL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("MINICURL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MINICURL_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("MINICURL_USER_AGENT"); v != "" {
		c.UserAgent = v
	}
	if v := os.Getenv("MINICURL_PROXY"); v != "" {
		c.Proxy.URL = v
	}
	if v := os.Getenv("MINICURL_PROXY_USERNAME"); v != "" {
		c.Proxy.Username = v
	}
	if v := os.Getenv("MINICURL_PROXY_PASSWORD"); v != "" {
		c.Proxy.Password = v
	}
	if v := os.Getenv("MINICURL_TOKEN"); v != "" {
		c.Auth.Token = v
	}
	if v := os.Getenv("MINICURL_STRICT_STATUS"); v != "" {
		c.StrictStatus = v == "true" || v == "1"
	}
	if v := os.Getenv("MINICURL_MAX_BODY_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MINICURL_MAX_BODY_SIZE: %w", err)
		}
		c.MaxBodySize = n
	}
	if v := os.Getenv("MINICURL_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MINICURL_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("MINICURL_RETRY_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MINICURL_RETRY_MAX_ATTEMPTS: %w", err)
		}
		c.Retry.MaxAttempts = n
	}
	if v := os.Getenv("MINICURL_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MINICURL_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("MINICURL_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse MINICURL_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.Retry.Attempts < 0 || c.Retry.MaxAttempts < 0 {
		return errors.New("config: retry attempts must not be negative")
	}
	if c.Retry.Backoff < 0 || c.Retry.MaxBackoff < 0 {
		return errors.New("config: retry backoff must not be negative")
	}
	if c.MaxBodySize < 0 {
		return errors.New("config: max body size must not be negative")
	}
	if c.Auth.TokenURL != "" && c.Auth.ClientID == "" {
		return errors.New("config: auth.client_id is required with auth.token_url")
	}
	for _, h := range c.Headers {
		if strings.TrimSpace(h) == "" {
			return errors.New("config: empty header line")
		}
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored; headers are appended.
func (c Config) Merge(override Config) Config {
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.UserAgent != "" {
		c.UserAgent = override.UserAgent
	}
	if len(override.Headers) > 0 {
		c.Headers = append(append([]string{}, c.Headers...), override.Headers...)
	}
	if override.Proxy.URL != "" {
		c.Proxy.URL = override.Proxy.URL
	}
	if override.Proxy.Username != "" {
		c.Proxy.Username = override.Proxy.Username
	}
	if override.Proxy.Password != "" {
		c.Proxy.Password = override.Proxy.Password
	}
	if override.Auth.Token != "" {
		c.Auth.Token = override.Auth.Token
	}
	if override.NoContentLengthOverride {
		c.NoContentLengthOverride = true
	}
	if override.StrictStatus {
		c.StrictStatus = true
	}
	if override.MaxBodySize != 0 {
		c.MaxBodySize = override.MaxBodySize
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = override.Retry.MaxAttempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
