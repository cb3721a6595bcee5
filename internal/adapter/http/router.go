package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/adapter/http/handler"
	"github.com/iho/gofolio/internal/adapter/http/middleware"
	"github.com/iho/gofolio/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	PortfolioHandler *handler.PortfolioHandler
	ValuationHandler *handler.ValuationHandler
	ReportHandler    *handler.ReportHandler
	HealthHandler    *handler.HealthHandler

	Logger           zerolog.Logger
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	// TokenVerifier enables owner-scoped bearer auth when set.
	TokenVerifier  middleware.TokenVerifier
	AllowedOrigins []string
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.IdempotencyKeyHeader},
			ExposedHeaders: []string{"X-Idempotency-Replay"},
			MaxAge:         300,
		}))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	// API v1
	r.Route("/api/v1/owners/{owner}", func(r chi.Router) {
		if cfg.TokenVerifier != nil {
			r.Use(middleware.AuthMiddleware(cfg.TokenVerifier))
		}
		if cfg.IdempotencyStore != nil {
			r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore).WithTTL(cfg.IdempotencyTTL).Wrap)
		}

		p := cfg.PortfolioHandler
		r.Get("/ledger", p.Ledger)
		r.Post("/buy", p.Buy)
		r.Post("/sell", p.Sell)
		r.Post("/dividends", p.Dividend)
		r.Post("/deposit", p.Deposit)
		r.Post("/withdraw", p.Withdraw)
		r.Post("/transfer", p.Transfer)
		r.Post("/exchange", p.Exchange)
		r.Get("/watchlist", p.Watchlist)
		r.Put("/watchlist", p.Watch)
		r.Delete("/watchlist/{symbol}", p.Unwatch)

		r.Get("/valuation", cfg.ValuationHandler.Valuation)
		r.Get("/reconcile", cfg.ValuationHandler.Reconcile)

		r.Post("/report", cfg.ReportHandler.Report)
		r.Post("/assistant", cfg.ReportHandler.Ask)
	})

	return r
}
