// Package config defines the top-level configuration for polybet and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYBET_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Filter     FilterConfig     `toml:"filter"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost      string   `toml:"gamma_host"`
	ClobHost       string   `toml:"clob_host"`
	RtdsHost       string   `toml:"rtds_host"`
	MarketPageBase string   `toml:"market_page_base"`
	PageSize       int      `toml:"page_size"`
	MaxPages       int      `toml:"max_pages"`
	RequestTimeout duration `toml:"request_timeout"`
}

// FilterConfig holds the thresholds of the 24h/48h market windows.
type FilterConfig struct {
	MinPrice   float64 `toml:"min_price"`
	MaxPrice   float64 `toml:"max_price"`
	MinVolume  float64 `toml:"min_volume"`
	DebugRelax bool    `toml:"debug_relax"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	MarketTTL  duration `toml:"market_ttl"`
}

// S3Config holds S3-compatible object storage parameters. Exports and the
// history archive are skipped when Enabled is false.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds scraping, alerting and archiving parameters.
type PipelineConfig struct {
	Enabled              bool     `toml:"enabled"`
	ScrapeInterval       duration `toml:"scrape_interval"`
	AlertInterval        duration `toml:"alert_interval"`
	PriceStream          bool     `toml:"price_stream"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ExportRetentionDays  int      `toml:"export_retention_days"`
	ArchiveCron          string   `toml:"archive_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKeys guards the user-scoped routes. Empty disables auth.
	APIKeys         []string `toml:"api_keys"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			GammaHost:      "https://gamma-api.polymarket.com",
			ClobHost:       "https://clob.polymarket.com",
			RtdsHost:       "wss://ws-live-data.polymarket.com",
			MarketPageBase: "https://polymarket.com/event/",
			PageSize:       100,
			MaxPages:       50,
			RequestTimeout: duration{15 * time.Second},
		},
		Filter: FilterConfig{
			MinPrice:  0.75,
			MaxPrice:  0.95,
			MinVolume: 1000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polybet",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			MarketTTL:  duration{10 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polybet-data",
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			Enabled:              true,
			ScrapeInterval:       duration{5 * time.Minute},
			AlertInterval:        duration{time.Minute},
			PriceStream:          false,
			ArchiveRetentionDays: 90,
			ExportRetentionDays:  7,
			ArchiveCron:          "0 3 * * *",
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"alert_triggered", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"scrape": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, scrape, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.PageSize < 1 || c.Polymarket.PageSize > 500 {
		errs = append(errs, fmt.Sprintf("polymarket: page_size must be 1-500, got %d", c.Polymarket.PageSize))
	}
	if c.Polymarket.MaxPages < 1 {
		errs = append(errs, "polymarket: max_pages must be >= 1")
	}
	if c.Pipeline.PriceStream && c.Polymarket.RtdsHost == "" {
		errs = append(errs, "polymarket: rtds_host is required when pipeline.price_stream is set")
	}

	// Filter
	if c.Filter.MinPrice < 0 || c.Filter.MaxPrice > 1 || c.Filter.MinPrice > c.Filter.MaxPrice {
		errs = append(errs, fmt.Sprintf("filter: need 0 <= min_price <= max_price <= 1, got [%g, %g]", c.Filter.MinPrice, c.Filter.MaxPrice))
	}
	if c.Filter.MinVolume < 0 {
		errs = append(errs, "filter: min_volume must be >= 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Pipeline
	if c.Pipeline.Enabled {
		if c.Pipeline.ScrapeInterval.Duration <= 0 {
			errs = append(errs, "pipeline: scrape_interval must be > 0")
		}
		if c.Pipeline.AlertInterval.Duration <= 0 {
			errs = append(errs, "pipeline: alert_interval must be > 0")
		}
		if c.Pipeline.ArchiveRetentionDays <= 0 {
			errs = append(errs, "pipeline: archive_retention_days must be > 0")
		}
		if c.Pipeline.ExportRetentionDays < 0 {
			errs = append(errs, "pipeline: export_retention_days must be >= 0")
		}
		if len(strings.Fields(c.Pipeline.ArchiveCron)) != 5 {
			errs = append(errs, fmt.Sprintf("pipeline: archive_cron must have 5 fields, got %q", c.Pipeline.ArchiveCron))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && c.Server.RateLimitWindow.Duration <= 0 {
			errs = append(errs, "server: rate_limit_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
