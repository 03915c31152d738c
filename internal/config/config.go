// Package config defines session configuration and its loading hooks.
//
// Conventions:
// - Flat koanf keys, one per field, matching GLOBEPINS_<KEY> env vars.
// - New returns defaults; Load layers file and environment on top.
// - Errors wrap this package's sentinels.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/globepins/internal/adapters/checkpoint"
)

// Backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	CheckpointMemory = "memory"
	CheckpointFile   = "file"
	CheckpointRedis  = "redis"
)

// Config contains session configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// MetricsAddr is where `watch` serves /metrics. Empty disables it.
	MetricsAddr      string   `koanf:"metrics_addr"`
	MetricsEnabled   bool     `koanf:"metrics_enabled"`
	MetricsNamespace string   `koanf:"metrics_namespace"`
	MetricsRefreshMS int      `koanf:"metrics_refresh_ms"`
	MetricsLabels    []string `koanf:"metrics_labels"` // key=value, added to every series

	// Store selects the document store backend.
	Store       string `koanf:"store"`
	PostgresDSN string `koanf:"postgres_dsn"`
	Collection  string `koanf:"collection"`

	// Checkpoint selects where the ingestion resume offset lives.
	Checkpoint     string `koanf:"checkpoint"`
	CheckpointPath string `koanf:"checkpoint_path"`
	CheckpointKey  string `koanf:"checkpoint_key"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`

	// Ingestion pacing.
	BatchSize         int `koanf:"batch_size"`
	InterBatchDelayMS int `koanf:"inter_batch_delay_ms"`
	RetryBaseMS       int `koanf:"retry_base_ms"`
	RetryMaxMS        int `koanf:"retry_max_ms"`
	RetryAttempts     int `koanf:"retry_attempts"`

	// OverlaySource is a file path or URL; empty uses the bundled dataset.
	OverlaySource string `koanf:"overlay_source"`
	ShowOverlay   bool   `koanf:"show_overlay"`

	// PageURL is the address the session runs under; it feeds the access gate.
	PageURL       string   `koanf:"page_url"`
	InFrame       bool     `koanf:"in_frame"`
	LocalOverride bool     `koanf:"local_override"`
	Mobile        bool     `koanf:"mobile"`
	AdminHosts    []string `koanf:"admin_hosts"`
	AdminPaths    []string `koanf:"admin_paths"`
	DevHosts      []string `koanf:"dev_hosts"`

	// JWTSecret verifies AdminToken; both empty means no admin claim.
	JWTSecret  string `koanf:"jwt_secret"`
	JWTClaim   string `koanf:"jwt_claim"`
	AdminToken string `koanf:"admin_token"`

	SearchDebounceMS int `koanf:"search_debounce_ms"`
	SearchLimit      int `koanf:"search_limit"`
	SearchCacheTTLMS int `koanf:"search_cache_ttl_ms"`

	// MailboxSize bounds the reconcile store's pending messages.
	MailboxSize int `koanf:"mailbox_size"`
}

// New returns a Config holding defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		MetricsAddr:       ":9464",
		MetricsEnabled:    true,
		MetricsNamespace:  "globepins",
		MetricsRefreshMS:  10_000,
		Store:             StoreMemory,
		Collection:        "all_cities",
		Checkpoint:        CheckpointFile,
		CheckpointPath:    ".globepins/checkpoint.json",
		CheckpointKey:     checkpoint.DefaultKey,
		BatchSize:         200,
		InterBatchDelayMS: 1000,
		RetryBaseMS:       500,
		RetryMaxMS:        8000,
		RetryAttempts:     5,
		ShowOverlay:       true,
		PageURL:           "http://localhost/",
		AdminPaths:        []string{"/admin", "/admin/", "/admin.html"},
		DevHosts:          []string{"localhost", "127.0.0.1", "::1"},
		JWTClaim:          "admin",
		SearchDebounceMS:  250,
		SearchLimit:       10,
		SearchCacheTTLMS:  30_000,
		MailboxSize:       64,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case !slices.Contains([]string{StoreMemory, StorePostgres}, c.Store):
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == StorePostgres && c.PostgresDSN == "":
		return fmt.Errorf("%w: postgres_dsn must be set for the postgres store", ErrInvalidConfig)
	case !slices.Contains([]string{CheckpointMemory, CheckpointFile, CheckpointRedis}, c.Checkpoint):
		return fmt.Errorf("%w: unknown checkpoint backend %q", ErrInvalidConfig, c.Checkpoint)
	case c.Checkpoint == CheckpointFile && c.CheckpointPath == "":
		return fmt.Errorf("%w: checkpoint_path must not be empty", ErrInvalidConfig)
	case c.Checkpoint == CheckpointRedis && c.RedisAddr == "":
		return fmt.Errorf("%w: redis_addr must be set for the redis checkpoint", ErrInvalidConfig)
	case c.BatchSize < 1 || c.BatchSize > 400:
		return fmt.Errorf("%w: batch_size must be in [1,400], got %d", ErrInvalidConfig, c.BatchSize)
	case c.InterBatchDelayMS < 0 || c.RetryBaseMS < 0 || c.RetryMaxMS < 0 || c.RetryAttempts < 0:
		return fmt.Errorf("%w: ingestion timings must not be negative", ErrInvalidConfig)
	case c.SearchLimit < 1:
		return fmt.Errorf("%w: search_limit must be positive", ErrInvalidConfig)
	case c.SearchDebounceMS < 0 || c.SearchCacheTTLMS < 0:
		return fmt.Errorf("%w: search timings must not be negative", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	case c.MetricsRefreshMS < 0:
		return fmt.Errorf("%w: metrics_refresh_ms must not be negative", ErrInvalidConfig)
	}
	if _, err := c.MetricLabels(); err != nil {
		return err
	}
	return nil
}

// MetricLabels parses MetricsLabels into a label map.
func (c *Config) MetricLabels() (map[string]string, error) {
	out := make(map[string]string, len(c.MetricsLabels))
	for _, pair := range c.MetricsLabels {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: metrics_labels entry %q is not key=value", ErrInvalidConfig, pair)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// InterBatchDelay is the minimum spacing between ingestion batches.
func (c *Config) InterBatchDelay() time.Duration { return ms(c.InterBatchDelayMS) }

// RetryBase is the first quota backoff delay.
func (c *Config) RetryBase() time.Duration { return ms(c.RetryBaseMS) }

// RetryMax caps the quota backoff delay.
func (c *Config) RetryMax() time.Duration { return ms(c.RetryMaxMS) }

// SearchDebounce is the pause after the last keystroke before searching.
func (c *Config) SearchDebounce() time.Duration { return ms(c.SearchDebounceMS) }

// MetricsRefresh is how often process gauges are sampled.
func (c *Config) MetricsRefresh() time.Duration { return ms(c.MetricsRefreshMS) }

// SearchCacheTTL is how long search results are reused.
func (c *Config) SearchCacheTTL() time.Duration { return ms(c.SearchCacheTTLMS) }
