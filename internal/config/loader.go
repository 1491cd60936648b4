package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load layers the TOML file at path over Defaults and then applies POLYBET_*
// environment overrides, including those from a .env file in the working
// directory. An empty path skips the file. The result is not validated;
// callers run Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYBET_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.ClobHost, "POLYBET_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.RtdsHost, "POLYBET_POLYMARKET_RTDS_HOST")
	setStr(&cfg.Polymarket.MarketPageBase, "POLYBET_POLYMARKET_MARKET_PAGE_BASE")
	setInt(&cfg.Polymarket.PageSize, "POLYBET_POLYMARKET_PAGE_SIZE")
	setInt(&cfg.Polymarket.MaxPages, "POLYBET_POLYMARKET_MAX_PAGES")
	setDuration(&cfg.Polymarket.RequestTimeout, "POLYBET_POLYMARKET_REQUEST_TIMEOUT")

	// ── Filter ──
	setFloat64(&cfg.Filter.MinPrice, "POLYBET_FILTER_MIN_PRICE")
	setFloat64(&cfg.Filter.MaxPrice, "POLYBET_FILTER_MAX_PRICE")
	setFloat64(&cfg.Filter.MinVolume, "POLYBET_FILTER_MIN_VOLUME")
	setBool(&cfg.Filter.DebugRelax, "POLYBET_FILTER_DEBUG_RELAX")
	setBool(&cfg.Filter.DebugRelax, "DEBUG_RELAX") // compatibility alias

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "POLYBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYBET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "POLYBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "POLYBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "POLYBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYBET_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.MarketTTL, "POLYBET_REDIS_MARKET_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYBET_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "POLYBET_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.ScrapeInterval, "POLYBET_PIPELINE_SCRAPE_INTERVAL")
	setDuration(&cfg.Pipeline.AlertInterval, "POLYBET_PIPELINE_ALERT_INTERVAL")
	setBool(&cfg.Pipeline.PriceStream, "POLYBET_PIPELINE_PRICE_STREAM")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "POLYBET_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Pipeline.ExportRetentionDays, "POLYBET_PIPELINE_EXPORT_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "POLYBET_PIPELINE_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYBET_SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.APIKeys, "POLYBET_SERVER_API_KEYS")
	setInt(&cfg.Server.RateLimit, "POLYBET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "POLYBET_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYBET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYBET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYBET_MODE")
	setStr(&cfg.LogLevel, "POLYBET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
