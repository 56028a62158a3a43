// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// Config is the top-level toolsearch configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Search    SearchConfig    `mapstructure:"search"`
	History   HistoryConfig   `mapstructure:"history"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	APIPrefix    string        `mapstructure:"api_prefix"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	SearchRateLimit RateLimitConfig `mapstructure:"search_rate_limit"`
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// RateLimitConfig throttles POST /search per client IP. A zero
// RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// StorageConfig selects the storage backend and where it keeps its files.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DataDir string `mapstructure:"data_dir"`
}

// EmbeddingConfig selects the embedding provider. APIKey may be a
// keyring:// URI.
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SearchConfig struct {
	ScoreFloor   float64 `mapstructure:"score_floor"`
	DefaultLimit int     `mapstructure:"default_limit"`
	MaxLimit     int     `mapstructure:"max_limit"`
}

// HistoryConfig controls how deleted tools are removed from history.
// "view" filters on read only; "persist" also rewrites stored records.
type HistoryConfig struct {
	FilterMode string `mapstructure:"filter_mode"`
}

// ReconcileConfig controls the background index reconciler. A zero
// Interval disables it.
type ReconcileConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	MaxTries int           `mapstructure:"max_tries"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:8000")
	v.SetDefault("server.api_prefix", "/api/v1")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.search_rate_limit.requests_per_second", 0.0)
	v.SetDefault("server.search_rate_limit.burst", 10)
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.timeout", 30*time.Second)
	v.SetDefault("search.score_floor", 0.3)
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("history.filter_mode", "view")
	v.SetDefault("reconcile.interval", time.Duration(0))
	v.SetDefault("reconcile.max_tries", 3)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds TOOLSEARCH_* environment variables, so
// TOOLSEARCH_SERVER_LISTEN overrides server.listen.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("TOOLSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, tserr.Errorf(tserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, tserr.Errorf(tserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from path (defaults only when empty) with
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, tserr.Errorf(tserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// Validate checks the configuration for logical errors and returns all of
// them rather than stopping at the first.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateSearch()...)
	errs = append(errs, c.validateReconcile()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func invalid(format string, args ...any) error {
	return tserr.Errorf(tserr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, invalid("server.listen must not be empty"))
	} else if _, portStr, err := net.SplitHostPort(c.Server.Listen); err != nil {
		errs = append(errs, invalid("server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
	} else if port, err := strconv.Atoi(portStr); err != nil {
		errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
	} else if port < 0 || port > 65535 {
		// Port 0 asks the OS for a free port.
		errs = append(errs, invalid("server.listen port must be between 0 and 65535, got %d", port))
	}

	if !strings.HasPrefix(c.Server.APIPrefix, "/") || strings.HasSuffix(c.Server.APIPrefix, "/") {
		errs = append(errs, invalid("server.api_prefix must start with / and not end with /, got %q", c.Server.APIPrefix))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, invalid("server.read_timeout must be positive, got %s", c.Server.ReadTimeout))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, invalid("server.write_timeout must be positive, got %s", c.Server.WriteTimeout))
	}
	if rl := c.Server.SearchRateLimit; rl.RequestsPerSecond < 0 {
		errs = append(errs, invalid("server.search_rate_limit.requests_per_second must not be negative, got %g", rl.RequestsPerSecond))
	} else if rl.RequestsPerSecond > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.search_rate_limit.burst must be positive when a rate is set, got %d", rl.Burst))
	}
	for _, cidr := range c.Server.TrustedProxies {
		if _, _, err := net.ParseCIDR(strings.TrimSpace(cidr)); err != nil {
			errs = append(errs, invalid("server.trusted_proxies entry %q is not a CIDR", cidr))
		}
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if c.Storage.Backend != "sqlite" {
		errs = append(errs, invalid("storage.backend must be one of [sqlite], got %q", c.Storage.Backend))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, invalid("storage.data_dir must not be empty"))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	validProviders := map[string]bool{"openai": true, "google": true}
	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, invalid("embedding.provider must be one of [openai, google], got %q", c.Embedding.Provider))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, invalid("embedding.dimensions must be greater than 0, got %d", c.Embedding.Dimensions))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, invalid("embedding.timeout must be positive, got %s", c.Embedding.Timeout))
	}

	return errs
}

func (c *Config) validateSearch() []error {
	var errs []error

	if c.Search.ScoreFloor < -1 || c.Search.ScoreFloor > 1 {
		errs = append(errs, invalid("search.score_floor must be within [-1, 1], got %g", c.Search.ScoreFloor))
	}
	if c.Search.MaxLimit <= 0 {
		errs = append(errs, invalid("search.max_limit must be greater than 0, got %d", c.Search.MaxLimit))
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		errs = append(errs, invalid("search.default_limit must be within [1, search.max_limit], got %d", c.Search.DefaultLimit))
	}

	switch c.History.FilterMode {
	case "view", "persist":
	default:
		errs = append(errs, invalid("history.filter_mode must be one of [view, persist], got %q", c.History.FilterMode))
	}

	return errs
}

func (c *Config) validateReconcile() []error {
	var errs []error

	if c.Reconcile.Interval < 0 {
		errs = append(errs, invalid("reconcile.interval must not be negative, got %s", c.Reconcile.Interval))
	}
	if c.Reconcile.MaxTries <= 0 {
		errs = append(errs, invalid("reconcile.max_tries must be greater than 0, got %d", c.Reconcile.MaxTries))
	}

	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, invalid("logging.level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, invalid("logging.format must be one of [text, json], got %q", c.Logging.Format))
	}

	return errs
}
