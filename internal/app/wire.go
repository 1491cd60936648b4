package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/polybets/polybet/internal/blob/s3"
	"github.com/polybets/polybet/internal/cache/redis"
	"github.com/polybets/polybet/internal/config"
	"github.com/polybets/polybet/internal/domain"
	"github.com/polybets/polybet/internal/notify"
	"github.com/polybets/polybet/internal/platform/polymarket"
	"github.com/polybets/polybet/internal/service"
	"github.com/polybets/polybet/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	MarketStore   domain.MarketStore
	BookmarkStore domain.BookmarkStore
	AlertStore    domain.AlertStore
	HistoryStore  domain.HistoryStore

	// Caches
	PriceCache  domain.PriceCache
	BookCache   domain.BookCache
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage. Nil unless s3.enabled is set.
	BlobReader *s3blob.Reader
	Archiver   *s3blob.ArchiveImpl

	// Notifications
	Notifier *notify.Notifier

	// Health probes keyed by dependency name.
	Checks map[string]func(context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Checks: make(map[string]func(context.Context) error)}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Checks["postgres"] = pgClient.Ping

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.BookmarkStore = postgres.NewBookmarkStore(pool)
	deps.AlertStore = postgres.NewAlertStore(pool)
	historyStore := postgres.NewHistoryStore(pool)
	deps.HistoryStore = historyStore

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Checks["redis"] = redisClient.Ping

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.BookCache = redis.NewBookCache(redisClient)
	deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.MarketTTL.Duration)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Checks["s3"] = s3Client.Health

		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), historyStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		tg, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		if err != nil {
			logger.WarnContext(ctx, "telegram notifications disabled", slog.String("error", err.Error()))
		} else {
			senders = append(senders, tg)
		}
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// Services holds the business services shared by the HTTP API and the
// pipeline.
type Services struct {
	Markets   *service.MarketService
	Bookmarks *service.BookmarkService
	Alerts    *service.AlertService
	History   *service.HistoryService
	Prices    *service.PriceService
	Gamma     *polymarket.GammaClient
}

// NewServices builds the services on top of deps.
func NewServices(cfg *config.Config, deps *Dependencies, logger *slog.Logger) *Services {
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost).
		WithTimeout(cfg.Polymarket.RequestTimeout.Duration)
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost).
		WithTimeout(cfg.Polymarket.RequestTimeout.Duration)
	pageBase := cfg.Polymarket.MarketPageBase

	markets := service.NewMarketService(service.MarketServiceDeps{
		Markets: deps.MarketStore,
		Cache:   deps.MarketCache,
		Prices:  deps.PriceCache,
		Books:   deps.BookCache,
		Source:  clob,
		Bus:     deps.SignalBus,
		URLFor: func(eventSlug, conditionID string) string {
			return polymarket.MarketURL(pageBase, eventSlug, conditionID)
		},
		Filter: service.WindowFilter{
			MinPrice:  cfg.Filter.MinPrice,
			MaxPrice:  cfg.Filter.MaxPrice,
			MinVolume: cfg.Filter.MinVolume,
			Relax:     cfg.Filter.DebugRelax,
		},
		Logger: logger.With(slog.String("component", "market_service")),
	})

	// Interface-typed so a disabled store stays a true nil.
	var (
		archiver domain.Archiver
		exports  service.ExportStore
	)
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	if deps.BlobReader != nil {
		exports = deps.BlobReader
	}
	history := service.NewHistoryService(deps.HistoryStore, archiver, exports,
		logger.With(slog.String("component", "history_service")))

	bookmarks := service.NewBookmarkService(deps.BookmarkStore, markets, deps.PriceCache, history,
		logger.With(slog.String("component", "bookmark_service")))
	alerts := service.NewAlertService(deps.AlertStore, deps.BookmarkStore, deps.Notifier, deps.SignalBus,
		logger.With(slog.String("component", "alert_service")))
	prices := service.NewPriceService(deps.PriceCache, bookmarks, alerts, deps.SignalBus,
		logger.With(slog.String("component", "price_service")))

	return &Services{
		Markets:   markets,
		Bookmarks: bookmarks,
		Alerts:    alerts,
		History:   history,
		Prices:    prices,
		Gamma:     gamma,
	}
}
