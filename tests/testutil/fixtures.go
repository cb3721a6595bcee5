package testutil

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	httpAdapter "github.com/iho/gofolio/internal/adapter/http"
	"github.com/iho/gofolio/internal/adapter/http/handler"
	"github.com/iho/gofolio/internal/adapter/repository/document"
	postgresRepo "github.com/iho/gofolio/internal/adapter/repository/postgres"
	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/infrastructure/idgen"
	"github.com/iho/gofolio/internal/infrastructure/postgres"
	"github.com/iho/gofolio/internal/usecase"
	"github.com/iho/gofolio/internal/usecase/mocks"
)

// TestDB provides a migrated PostgreSQL document store.
type TestDB struct {
	Pool  *pgxpool.Pool
	Store *postgresRepo.DocumentStore
	t     *testing.T
}

// NewTestDB connects to DATABASE_URL and applies the migrations. The test
// is skipped when no database is configured.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	migrationsPath := "migrations"
	for _, candidate := range []string{"migrations", "../migrations", "../../migrations"} {
		if _, err := os.Stat(candidate); err == nil {
			migrationsPath = candidate
			break
		}
	}

	if err := postgres.RunMigrations(dbURL, migrationsPath, zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dbURL, 10, 1)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	return &TestDB{
		Pool:  pool,
		Store: postgresRepo.NewDocumentStore(pool, zerolog.Nop()),
		t:     t,
	}
}

// Cleanup closes the database connection.
func (db *TestDB) Cleanup() {
	db.Pool.Close()
}

// TruncateAll removes every document and revision.
func (db *TestDB) TruncateAll(ctx context.Context) {
	db.t.Helper()

	_, err := db.Pool.Exec(ctx, `TRUNCATE TABLE document_revisions, documents`)
	if err != nil {
		db.t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Revisions counts the stored revisions of a document.
func (db *TestDB) Revisions(ctx context.Context, name string) int {
	db.t.Helper()

	var n int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM document_revisions WHERE name = $1`, name).Scan(&n); err != nil {
		db.t.Fatalf("failed to count revisions: %v", err)
	}
	return n
}

// Stack is the application wired over a document store, with a fixed
// quote table and default FX rates.
type Stack struct {
	Repo        *document.LedgerRepository
	Portfolio   *usecase.PortfolioUseCase
	Valuation   *usecase.ValuationUseCase
	Reconciler  *usecase.ReconciliationUseCase
	Events      *mocks.FakeEventPublisher
	Idempotency *mocks.FakeIdempotencyStore
	Router      http.Handler
}

// NewStack builds the use cases and router on store.
func NewStack(store usecase.DocumentStore, quotes ...domain.Quote) *Stack {
	logger := zerolog.Nop()
	clock := usecase.SystemClock{}
	ids := idgen.NewULIDGenerator()
	repo := document.NewLedgerRepository(store, 10*time.Second, logger)

	converter := domain.NewConverter("MXN", map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("20.85"),
		"EUR": decimal.RequireFromString("24.19"),
	}, decimal.NewFromInt(1))
	gateway := usecase.NewQuoteGateway(mocks.NewFakeQuoteProvider(quotes...), mocks.NewFakeQuoteCache(),
		usecase.QuoteGatewayConfig{}, clock, nil, logger)
	events := &mocks.FakeEventPublisher{}
	idem := mocks.NewFakeIdempotencyStore()

	locks := usecase.NewOwnerLocks()
	portfolio := usecase.NewPortfolioUseCase(repo, locks, usecase.NewTransactionEngine("MXN", ids, clock),
		gateway, converter, events, ids, clock, nil, logger)
	valuation := usecase.NewValuationUseCase(repo, locks, gateway, converter, clock, nil, logger)
	reconciler := usecase.NewReconciliationUseCase(repo, clock)
	report := usecase.NewReportUseCase(valuation, &mocks.FakeNotifier{}, nil, logger)

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		PortfolioHandler: handler.NewPortfolioHandler(portfolio),
		ValuationHandler: handler.NewValuationHandler(valuation, reconciler),
		ReportHandler:    handler.NewReportHandler(report, nil),
		HealthHandler:    handler.NewHealthHandler(),
		Logger:           logger,
		IdempotencyStore: idem,
		MetricsHandler:   http.NotFoundHandler(),
	})

	return &Stack{
		Repo:        repo,
		Portfolio:   portfolio,
		Valuation:   valuation,
		Reconciler:  reconciler,
		Events:      events,
		Idempotency: idem,
		Router:      router,
	}
}
