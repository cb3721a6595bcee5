package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

// Metrics holds all Prometheus metrics and implements usecase.MetricsRecorder.
type Metrics struct {
	// Ledger operations
	Operations      *prometheus.CounterVec
	OperationErrors *prometheus.CounterVec

	// Quotes
	QuoteFetches  *prometheus.CounterVec
	QuoteSymbols  *prometheus.CounterVec
	QuoteCacheOps *prometheus.CounterVec

	// Valuation
	ValuationDuration prometheus.Histogram
	NetWorth          *prometheus.GaugeVec

	// Storage and delivery
	StoreFailures *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates the metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofolio_operations_total",
				Help: "Ledger operations by kind and result",
			},
			[]string{"operation", "result"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofolio_operation_errors_total",
				Help: "Failed ledger operations by error type",
			},
			[]string{"operation", "error_type"},
		),
		QuoteFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofolio_quote_fetches_total",
				Help: "Quote provider calls by result",
			},
			[]string{"result"},
		),
		QuoteSymbols: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofolio_quote_symbols_total",
				Help: "Symbols requested from the quote provider by outcome",
			},
			[]string{"outcome"},
		),
		QuoteCacheOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofolio_quote_cache_lookups_total",
				Help: "Quote cache lookups by result",
			},
			[]string{"result"},
		),
		ValuationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gofolio_valuation_duration_seconds",
			Help:    "Duration of valuation computations",
			Buckets: prometheus.DefBuckets,
		}),
		NetWorth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gofolio_net_worth",
				Help: "Latest net worth per owner in the reference currency",
			},
			[]string{"owner"},
		),
		StoreFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofolio_store_failures_total",
				Help: "Ledger store write failures by operation",
			},
			[]string{"operation"},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gofolio_notifications_total",
				Help: "Report notifications by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) ObserveOperation(operation string, err error) {
	if err != nil {
		m.Operations.WithLabelValues(operation, "error").Inc()
		m.OperationErrors.WithLabelValues(operation, errorType(err)).Inc()
		return
	}
	m.Operations.WithLabelValues(operation, "ok").Inc()
}

func (m *Metrics) ObserveQuoteFetch(requested, resolved int, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case resolved < requested:
		result = "partial"
	}
	m.QuoteFetches.WithLabelValues(result).Inc()
	m.QuoteSymbols.WithLabelValues("resolved").Add(float64(resolved))
	if missing := requested - resolved; missing > 0 {
		m.QuoteSymbols.WithLabelValues("missing").Add(float64(missing))
	}
}

func (m *Metrics) ObserveQuoteCache(hit bool) {
	m.QuoteCacheOps.WithLabelValues(result(hit, "hit", "miss")).Inc()
}

func (m *Metrics) ObserveValuation(owner string, netWorth float64, elapsed time.Duration) {
	m.ValuationDuration.Observe(elapsed.Seconds())
	m.NetWorth.WithLabelValues(owner).Set(netWorth)
}

func (m *Metrics) ObserveStoreFailure(operation string) {
	m.StoreFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveNotification(ok bool) {
	m.Notifications.WithLabelValues(result(ok, "sent", "failed")).Inc()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// errorType buckets an operation error into a low-cardinality label.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInsufficientShares):
		return "insufficient_shares"
	case usecase.IsStorageError(err):
		return "storage"
	case errors.Is(err, domain.ErrWatchNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrSameCurrency),
		errors.Is(err, domain.ErrInvalidOwner),
		errors.Is(err, domain.ErrInvalidSymbol),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrAmountTooLarge),
		errors.Is(err, domain.ErrNoteTooLong):
		return "validation"
	default:
		return "other"
	}
}

var _ usecase.MetricsRecorder = (*Metrics)(nil)
