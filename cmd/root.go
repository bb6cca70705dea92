package cmd

import (
	"context"
	"fmt"
	u "net/url"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/minicurl/internal/auth"
	"github.com/tanq16/minicurl/internal/config"
	"github.com/tanq16/minicurl/internal/output"
	"github.com/tanq16/minicurl/internal/utils"
	"github.com/tanq16/minicurl/pkg/minicurl"
)

var (
	timeout                 time.Duration
	retries                 int
	maxAttempts             int
	maxBodySize             int
	userAgent               string
	proxyURL                string
	proxyUsername           string
	proxyPassword           string
	configFile              string
	tokenCache              string
	token                   string
	debug                   bool
	strictStatus            bool
	noContentLengthOverride bool
	headers                 []string
)

var MinicurlVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "minicurl",
	Short:   "minicurl is a small HTTP client with resumable transfers",
	Version: MinicurlVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Accept: application/json' or 'Accept;'); can be specified multiple times")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "Per-attempt timeout (eg. 1s, 30s) (default 1s)")
	rootCmd.PersistentFlags().IntVarP(&retries, "retries", "r", 0, "Attempts allowed without progress before giving up (default 5)")
	rootCmd.PersistentFlags().IntVar(&maxAttempts, "max-attempts", 0, "Total attempt ceiling for one transfer (default 256)")
	rootCmd.PersistentFlags().IntVar(&maxBodySize, "max-body-size", 0, "Largest response body kept in memory, in bytes (0 for no limit)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", "", "User agent ('randomize' picks a browser agent)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token sent as an Authorization header")
	rootCmd.PersistentFlags().StringVar(&tokenCache, "token-cache", "", "File caching OAuth client credentials tokens")
	rootCmd.PersistentFlags().BoolVar(&strictStatus, "strict-status", false, "Treat 401/403/404 status codes as errors")
	rootCmd.PersistentFlags().BoolVar(&noContentLengthOverride, "no-content-length-override", false, "Send a caller supplied Content-Length as is")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newHeaderCmd())
	rootCmd.AddCommand(newPostCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newBatchCmd())
}

// loadConfig layers defaults, the config file, MINICURL_* variables and
// command line flags, in that order.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		fileCfg, err := config.LoadFromFile(configFile)
		if err != nil {
			return cfg, err
		}
		cfg = fileCfg
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return cfg, err
	}

	flags := config.Config{
		Timeout:                 timeout,
		UserAgent:               userAgent,
		Headers:                 headers,
		Proxy:                   config.ProxyConfig{URL: proxyURL, Username: proxyUsername, Password: proxyPassword},
		Retry:                   config.RetryConfig{Attempts: retries, MaxAttempts: maxAttempts},
		Auth:                    config.AuthConfig{Token: token},
		NoContentLengthOverride: noContentLengthOverride,
		StrictStatus:            strictStatus,
		MaxBodySize:             maxBodySize,
	}
	cfg = cfg.Merge(flags)

	if cfg.UserAgent == "randomize" {
		cfg.UserAgent = utils.GetRandomUserAgent()
	}
	// Check if proxy URL contains auth
	parsedProxy, err := u.Parse(cfg.Proxy.URL)
	if err == nil && parsedProxy.User != nil && cfg.Proxy.Username == "" {
		cfg.Proxy.Username = parsedProxy.User.Username()
		if password, set := parsedProxy.User.Password(); set {
			cfg.Proxy.Password = password
		}
		parsedProxy.User = nil
		cfg.Proxy.URL = parsedProxy.String()
	}
	return cfg, cfg.Validate()
}

// newClient builds a client from the layered configuration. Headers from
// the config file and flags are left to the caller so that post and upload
// can apply their defaults when none are given.
func newClient(cfg config.Config, opts ...minicurl.Option) (*minicurl.Client, error) {
	base := []minicurl.Option{
		minicurl.WithLogger(log.Logger),
		minicurl.WithTimeout(cfg.Timeout),
		minicurl.WithRetry(minicurl.RetryPolicy{
			Attempts:    cfg.Retry.Attempts,
			MaxAttempts: cfg.Retry.MaxAttempts,
			Backoff:     cfg.Retry.Backoff,
			MaxBackoff:  cfg.Retry.MaxBackoff,
		}),
		minicurl.WithUserAgent(cfg.UserAgent),
		minicurl.WithProxy(cfg.Proxy.URL, cfg.Proxy.Username, cfg.Proxy.Password),
		minicurl.WithContentLengthOverride(!cfg.NoContentLengthOverride),
		minicurl.WithStrictStatus(cfg.StrictStatus),
		minicurl.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.Auth.Token != "" || cfg.Auth.TokenURL != "" {
		src, err := auth.NewTokenSource(context.Background(), cfg.Auth, tokenCache)
		if err != nil {
			return nil, err
		}
		line, err := auth.HeaderLine(src)
		if err != nil {
			return nil, err
		}
		base = append(base, minicurl.WithHeaders(line))
	}
	return minicurl.New(append(base, opts...)...), nil
}

// setup loads the configuration and builds a client, exiting on failure.
func setup(opts ...minicurl.Option) (*minicurl.Client, config.Config) {
	cfg, err := loadConfig()
	if err != nil {
		output.PrintError(fmt.Sprintf("Invalid configuration: %v", err))
		os.Exit(1)
	}
	client, err := newClient(cfg, opts...)
	if err != nil {
		output.PrintError(fmt.Sprintf("Cannot set up authorization: %v", err))
		os.Exit(1)
	}
	return client, cfg
}

func validateURL(url string) {
	if _, err := u.Parse(url); err != nil {
		output.PrintError("Invalid URL format")
		os.Exit(1)
	}
}
