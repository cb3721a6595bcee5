package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iho/gofolio/internal/adapter/assistant/gemini"
	"github.com/iho/gofolio/internal/adapter/events/kafka"
	httpAdapter "github.com/iho/gofolio/internal/adapter/http"
	"github.com/iho/gofolio/internal/adapter/http/handler"
	"github.com/iho/gofolio/internal/adapter/http/middleware"
	"github.com/iho/gofolio/internal/adapter/marketdata/yahoo"
	"github.com/iho/gofolio/internal/adapter/notifier/telegram"
	"github.com/iho/gofolio/internal/adapter/repository/document"
	"github.com/iho/gofolio/internal/adapter/repository/filestore"
	"github.com/iho/gofolio/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/gofolio/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/gofolio/internal/adapter/repository/redis"
	"github.com/iho/gofolio/internal/adapter/repository/s3store"
	sqliteRepo "github.com/iho/gofolio/internal/adapter/repository/sqlite"
	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/infrastructure/auth"
	"github.com/iho/gofolio/internal/infrastructure/config"
	"github.com/iho/gofolio/internal/infrastructure/eventpublisher"
	"github.com/iho/gofolio/internal/infrastructure/idgen"
	"github.com/iho/gofolio/internal/infrastructure/logger"
	"github.com/iho/gofolio/internal/infrastructure/metrics"
	"github.com/iho/gofolio/internal/infrastructure/postgres"
	"github.com/iho/gofolio/internal/infrastructure/redis"
	"github.com/iho/gofolio/internal/infrastructure/scheduler"
	"github.com/iho/gofolio/internal/infrastructure/sqlite"
	"github.com/iho/gofolio/internal/usecase"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	jobTimeout             = 5 * time.Minute
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	log.Logger = logg

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Fatal().Err(err).Msg("server failed")
	}
	logg.Info().Msg("server stopped")
}

// closers runs cleanup functions in reverse order of registration.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func run(ctx context.Context, cfg *config.Config, logg zerolog.Logger) error {
	var cleanup closers
	defer cleanup.run()

	// Ledger store
	store, storePinger, closeStore, err := openDocumentStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	cleanup.add(closeStore)
	repo := document.NewLedgerRepository(store, cfg.StoreTimeout, logg)
	logg.Info().Str("backend", cfg.LedgerBackend).Msg("ledger store ready")

	// Redis is optional; it backs idempotency keys and the shared quote cache.
	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		cleanup.add(func() { _ = redisClient.Close() })
		logg.Info().Msg("connected to redis")
	}

	quoteCache, closeCache, err := openQuoteCache(cfg, redisClient, logg)
	if err != nil {
		return err
	}
	cleanup.add(closeCache)

	rates, fallback, err := cfg.FXRates()
	if err != nil {
		return err
	}
	converter := domain.NewConverter(cfg.ReferenceCurrency, rates, fallback)

	m := metrics.New()
	idGen := idgen.NewULIDGenerator()
	clock := usecase.SystemClock{}

	// Events
	publisher, closePublisher := openEventPublisher(cfg, logg)
	cleanup.add(closePublisher)
	dispatcher := eventpublisher.NewDispatcher(eventpublisher.Config{
		Publisher: publisher,
		Logger:    logg,
	})

	// Use cases
	gateway := usecase.NewQuoteGateway(yahoo.NewProvider(logg), quoteCache, usecase.QuoteGatewayConfig{
		CacheTTL: cfg.QuoteCacheTTL,
		Timeout:  cfg.QuoteTimeout,
	}, clock, m, logg)
	engine := usecase.NewTransactionEngine(cfg.ReferenceCurrency, idGen, clock)
	locks := usecase.NewOwnerLocks()
	portfolioUC := usecase.NewPortfolioUseCase(repo, locks, engine, gateway, converter, dispatcher, idGen, clock, m, logg)
	valuationUC := usecase.NewValuationUseCase(repo, locks, gateway, converter, clock, m, logg)
	reconciliationUC := usecase.NewReconciliationUseCase(repo, clock)
	reportUC := usecase.NewReportUseCase(valuationUC, newNotifier(cfg, logg), m, logg)

	var assistantSvc handler.AssistantService
	if cfg.GeminiAPIKey != "" {
		assistant, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		assistantSvc = usecase.NewAssistantUseCase(valuationUC, assistant, logg)
	}

	// Scheduled jobs
	sched := scheduler.New(logg, jobTimeout)
	if err := registerJobs(sched, cfg, repo, valuationUC, reportUC, reconciliationUC, dispatcher, idGen, logg); err != nil {
		return err
	}

	// HTTP
	health := handler.NewHealthHandler()
	if storePinger != nil {
		health.WithCheck("ledger_store", storePinger)
	}
	if redisClient != nil {
		health.WithCheck("redis", handler.PingFunc(redis.Pinger(redisClient)))
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	routerCfg := httpAdapter.RouterConfig{
		PortfolioHandler: handler.NewPortfolioHandler(portfolioUC),
		ValuationHandler: handler.NewValuationHandler(valuationUC, reconciliationUC),
		ReportHandler:    handler.NewReportHandler(reportUC, assistantSvc),
		HealthHandler:    health,
		Logger:           logg,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		RateLimiter:      limiter,
		AllowedOrigins:   cfg.CORSOrigins,
	}
	if redisClient != nil {
		routerCfg.IdempotencyStore = redisRepo.NewIdempotencyStore(redisClient)
	}
	if cfg.AuthEnabled {
		routerCfg.TokenVerifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	}

	server := &http.Server{
		Addr:         listenAddr(cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logg.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := dispatcher.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.CleanupLimiters()
			}
		}
	})

	sched.Start()

	g.Go(func() error {
		<-gctx.Done()
		logg.Info().Msg("shutting down server...")

		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// openDocumentStore builds the configured ledger backend. The returned
// pinger is nil for backends without a cheap connectivity check.
func openDocumentStore(ctx context.Context, cfg *config.Config, logg zerolog.Logger) (usecase.DocumentStore, handler.Pinger, func(), error) {
	noop := func() {}

	switch cfg.LedgerBackend {
	case config.BackendFile:
		store, err := filestore.New(cfg.LedgerDir, logg)
		if err != nil {
			return nil, nil, noop, err
		}
		return store, nil, noop, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, noop, err
		}
		store, err := sqliteRepo.NewDocumentStore(ctx, db, usecase.SystemClock{})
		if err != nil {
			_ = db.Close()
			return nil, nil, noop, err
		}
		return store, handler.PingFunc(store.Ping), func() { _ = db.Close() }, nil

	case config.BackendPostgres:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logg); err != nil {
			return nil, nil, noop, err
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
		if err != nil {
			return nil, nil, noop, err
		}
		store := postgresRepo.NewDocumentStore(pool, logg)
		return store, handler.PingFunc(store.Ping), pool.Close, nil

	case config.BackendS3:
		store, err := s3store.NewFromEnv(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Endpoint)
		if err != nil {
			return nil, nil, noop, err
		}
		return store, nil, noop, nil
	}

	return nil, nil, noop, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
}

func openQuoteCache(cfg *config.Config, client *goredis.Client, logg zerolog.Logger) (usecase.QuoteCache, func(), error) {
	if cfg.QuoteCache == config.CacheRedis {
		if client == nil {
			return nil, func() {}, errors.New("redis quote cache needs REDIS_URL")
		}
		return redisRepo.NewQuoteCache(client, logg), func() {}, nil
	}

	cache, err := memory.NewQuoteCache(0)
	if err != nil {
		return nil, func() {}, err
	}
	return cache, cache.Close, nil
}

// openEventPublisher returns the Kafka publisher when brokers are
// configured and a log publisher otherwise.
func openEventPublisher(cfg *config.Config, logg zerolog.Logger) (eventpublisher.Publisher, func()) {
	brokers := kafka.ParseBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return eventpublisher.NewLogPublisher(logg.With().Str("component", "events").Logger()), func() {}
	}

	p := kafka.NewPublisher(brokers, cfg.KafkaTopic)
	logg.Info().Strs("brokers", brokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	return p, func() {
		if err := p.Close(); err != nil {
			logg.Warn().Err(err).Msg("failed to close kafka publisher")
		}
	}
}

// newNotifier returns nil when Telegram is not configured; reports are then
// built but not delivered.
func newNotifier(cfg *config.Config, logg zerolog.Logger) usecase.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return nil
	}
	return telegram.New(telegram.Config{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID}, logg)
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	repo *document.LedgerRepository,
	valuer scheduler.Valuer,
	deliverer scheduler.Deliverer,
	reconciler scheduler.Reconciler,
	events usecase.EventPublisher,
	idGen usecase.IDGenerator,
	logg zerolog.Logger,
) error {
	if len(cfg.ReportOwners) > 0 && cfg.ReportSchedule != "" {
		job := scheduler.NewDailyReportJob(cfg.ReportOwners, valuer, deliverer, events, idGen, nil, logg)
		if err := sched.AddJob(cfg.ReportSchedule, job); err != nil {
			return fmt.Errorf("invalid REPORT_SCHEDULE: %w", err)
		}
	}
	if cfg.ReconcileSchedule != "" {
		if err := sched.AddJob(cfg.ReconcileSchedule, scheduler.NewReconcileJob(repo, reconciler, logg)); err != nil {
			return fmt.Errorf("invalid RECONCILE_SCHEDULE: %w", err)
		}
	}
	return nil
}

func listenAddr(port string) string {
	if port == "" {
		port = "8080"
	}
	return ":" + port
}
