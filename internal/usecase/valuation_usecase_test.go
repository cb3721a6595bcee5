package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
	"github.com/iho/gofolio/internal/usecase/mocks"
)

func sampleLedger() *domain.Ledger {
	l := domain.NewLedger("alice")
	l.Lots = []domain.Lot{
		{ID: "l1", Owner: "alice", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD", Sector: "Tech", CreatedAt: t0},
		{ID: "l2", Owner: "alice", Symbol: "ACME", Quantity: dec("5"), Price: dec("130"), Currency: "USD", Sector: "Tech", CreatedAt: t0.Add(time.Hour)},
		{ID: "l3", Owner: "alice", Symbol: "WALMEX.MX", Quantity: dec("3"), Price: dec("60.5"), Currency: "MXN", CreatedAt: t0},
		{ID: "l4", Owner: "alice", Symbol: "SAP.DE", Quantity: dec("0.3333"), Price: dec("171.13"), Currency: "EUR", CreatedAt: t0},
	}
	l.Cash = []domain.CashRecord{
		{ID: "c1", Owner: "alice", Amount: dec("250.75"), Currency: "USD", Type: domain.CashDeposit, CreatedAt: t0},
		{ID: "c2", Owner: "alice", Amount: dec("1000"), Currency: "MXN", Type: domain.CashDeposit, CreatedAt: t0},
		{ID: "c3", Owner: "alice", Amount: dec("-13.1"), Currency: "EUR", Type: domain.CashTransfer, CreatedAt: t0},
	}
	l.Sales = []domain.SaleRecord{
		{ID: "s1", Owner: "alice", Symbol: "ACME", Quantity: dec("1"), Price: dec("110"), Currency: "USD", RealizedGain: dec("10"), CreatedAt: t0},
	}
	l.Dividends = []domain.Dividend{
		{ID: "d1", Owner: "alice", Symbol: "ACME", Amount: dec("5"), Currency: "USD", CreatedAt: t0},
	}
	return l
}

func TestValuationEngine_Identity(t *testing.T) {
	quoteSets := []map[string]domain.Quote{
		nil,
		{"ACME": quote("ACME", "150.37", "USD")},
		{
			"ACME":      quote("ACME", "99.99", "USD"),
			"WALMEX.MX": quote("WALMEX.MX", "61.07", "MXN"),
			"SAP.DE":    quote("SAP.DE", "180.01", "EUR"),
		},
	}
	converter := domain.NewConverter("MXN", map[string]decimal.Decimal{
		"USD": dec("17.0931"),
		"EUR": dec("18.7713"),
	}, decimal.NewFromInt(1))

	for _, quotes := range quoteSets {
		v := usecase.ValuationEngine{}.Compute(sampleLedger(), quotes, converter, t0)

		sum := decimal.Zero
		for _, h := range v.Holdings {
			sum = sum.Add(h.MarketValueRef)
		}
		assert.True(t, v.NetWorth.Equal(sum.Add(v.CashRef)), "net worth %s != %s + %s", v.NetWorth, sum, v.CashRef)
		assert.True(t, v.MarketValue.Equal(sum))
	}
}

func TestValuationEngine_Compute(t *testing.T) {
	converter := newConverter()
	quotes := map[string]domain.Quote{
		"ACME": {Symbol: "ACME", Price: dec("150"), Currency: "USD", ChangePct: dec("2.5")},
	}

	v := usecase.ValuationEngine{}.Compute(sampleLedger(), quotes, converter, t0)

	require.Len(t, v.Holdings, 3)
	assert.Equal(t, []string{"ACME", "SAP.DE", "WALMEX.MX"}, []string{v.Holdings[0].Symbol, v.Holdings[1].Symbol, v.Holdings[2].Symbol})

	acme, ok := v.Holding("ACME")
	require.True(t, ok)
	assert.True(t, acme.Quantity.Equal(dec("15")))
	assert.True(t, acme.Cost.Equal(dec("1650")))
	assert.True(t, acme.AverageCost.Equal(dec("110")))
	assert.True(t, acme.MarketValue.Equal(dec("2250")))
	assert.True(t, acme.MarketValueRef.Equal(dec("45000")))
	assert.True(t, acme.UnrealizedPnLRef.Equal(dec("12000")))
	assert.Equal(t, "Tech", acme.Sector)
	assert.False(t, acme.Stale)

	walmex, _ := v.Holding("WALMEX.MX")
	assert.True(t, walmex.Stale)
	assert.Equal(t, domain.DefaultSector, walmex.Sector)

	assert.True(t, v.RealizedRef.Equal(dec("200")))
	assert.True(t, v.DividendsRef.Equal(dec("100")))
	assert.Equal(t, "MXN", v.Reference)
}

func TestValuationEngine_MissingQuoteFallsBackToCost(t *testing.T) {
	ledger := domain.NewLedger("alice")
	ledger.Lots = []domain.Lot{
		{ID: "l1", Symbol: "ACME", Quantity: dec("10"), Price: dec("100"), Currency: "USD", CreatedAt: t0},
		{ID: "l2", Symbol: "ACME", Quantity: dec("5"), Price: dec("130"), Currency: "USD", CreatedAt: t0},
	}

	v := usecase.ValuationEngine{}.Compute(ledger, map[string]domain.Quote{}, newConverter(), t0)

	h, ok := v.Holding("ACME")
	require.True(t, ok)
	assert.True(t, h.Stale)
	assert.True(t, h.MarketValue.Equal(h.Quantity.Mul(h.AverageCost)))
	assert.True(t, h.MarketValue.Equal(dec("1650")))
	assert.True(t, h.UnrealizedPnL.IsZero())
	assert.Equal(t, []string{"ACME"}, v.StaleSymbols())
}

func TestValuationEngine_UnrealizedPnLInQuoteCurrency(t *testing.T) {
	ledger := domain.NewLedger("alice")
	ledger.Lots = []domain.Lot{
		{ID: "l1", Symbol: "ACME", Quantity: dec("10"), Price: dec("200"), Currency: "MXN", CreatedAt: t0},
	}
	quotes := map[string]domain.Quote{"ACME": quote("ACME", "12", "USD")}

	v := usecase.ValuationEngine{}.Compute(ledger, quotes, newConverter(), t0)

	h, ok := v.Holding("ACME")
	require.True(t, ok)
	assert.Equal(t, "USD", h.Currency)
	assert.True(t, h.Cost.Equal(dec("2000")))
	assert.True(t, h.MarketValue.Equal(dec("120")))
	assert.True(t, h.UnrealizedPnL.Equal(dec("20")), "got %s", h.UnrealizedPnL)
	assert.True(t, h.UnrealizedPnLRef.Equal(dec("400")), "got %s", h.UnrealizedPnLRef)
}

func TestValuationEngine_Change24h(t *testing.T) {
	ledger := fundedLedger("alice", "1100", "MXN")
	ledger.History = []domain.HistoryPoint{
		{Owner: "alice", Date: "2024-02-28", NetWorth: dec("900")},
		{Owner: "alice", Date: "2024-02-29", NetWorth: dec("1000")},
		{Owner: "alice", Date: "2024-03-01", NetWorth: dec("1050")},
	}

	v := usecase.ValuationEngine{}.Compute(ledger, nil, newConverter(), t0)

	assert.True(t, v.Change24h.Equal(dec("100")), "got %s", v.Change24h)
	assert.True(t, v.Change24hPct.Equal(dec("10")), "got %s", v.Change24hPct)
}

func TestValuationEngine_WatchlistSignals(t *testing.T) {
	ledger := domain.NewLedger("alice")
	ledger.Watchlist = []domain.WatchlistEntry{
		{Symbol: "ACME", BuyTarget: dec("100")},
		{Symbol: "MSFT", SellTarget: dec("400")},
		{Symbol: "NOPE", BuyTarget: dec("1")},
	}
	quotes := map[string]domain.Quote{
		"ACME": quote("ACME", "95", "USD"),
		"MSFT": quote("MSFT", "390", "USD"),
	}

	v := usecase.ValuationEngine{}.Compute(ledger, quotes, newConverter(), t0)

	require.Len(t, v.Watchlist, 3)
	assert.Equal(t, domain.SignalBuy, v.Watchlist[0].Signal)
	assert.Equal(t, domain.SignalNone, v.Watchlist[1].Signal)
	assert.False(t, v.Watchlist[2].Available)
	assert.Len(t, v.Alerts(), 1)
}

func newValuationUseCase(repo usecase.LedgerRepository, provider usecase.QuoteProvider, clock usecase.Clock, metrics usecase.MetricsRecorder) *usecase.ValuationUseCase {
	gw := usecase.NewQuoteGateway(provider, mocks.NewFakeQuoteCache(), usecase.QuoteGatewayConfig{}, clock, metrics, zerolog.Nop())
	return usecase.NewValuationUseCase(repo, nil, gw, newConverter(), clock, metrics, zerolog.Nop())
}

func TestValuationUseCase_ComputeValuation(t *testing.T) {
	repo := mocks.NewFakeLedgerRepository()
	repo.Put(sampleLedger())
	clock := &mocks.FixedClock{T: t0}
	provider := mocks.NewFakeQuoteProvider(
		quote("ACME", "150", "USD"),
		quote("USDMXN=X", "18", "MXN"),
	)
	metrics := &recordingMetrics{}
	uc := newValuationUseCase(repo, provider, clock, metrics)

	v, err := uc.ComputeValuation(context.Background(), "alice")
	require.NoError(t, err)

	acme, _ := v.Holding("ACME")
	assert.True(t, acme.MarketValueRef.Equal(dec("40500")), "live FX rate applies, got %s", acme.MarketValueRef)
	assert.True(t, v.Rates["USD"].Equal(dec("18")))

	stored := repo.Stored("alice")
	require.Len(t, stored.History, 1)
	assert.Equal(t, "2024-03-01", stored.History[0].Date)
	assert.True(t, stored.History[0].NetWorth.Equal(v.NetWorth))
	assert.Len(t, stored.Lots, 4, "only the history stream is rewritten")
	assert.Equal(t, 1, metrics.valuations)

	requested := provider.Calls()[0]
	assert.Contains(t, requested, "USDMXN=X")
	assert.Contains(t, requested, "EURMXN=X")
}

// pausingRepo stores the first stream of a multi-stream save, then waits
// for release before storing the rest.
type pausingRepo struct {
	*mocks.FakeLedgerRepository
	paused  chan struct{}
	release chan struct{}
}

func (r *pausingRepo) Save(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream, note string) error {
	if len(streams) < 2 {
		return r.FakeLedgerRepository.Save(ctx, ledger, streams, note)
	}
	if err := r.FakeLedgerRepository.Save(ctx, ledger, streams[:1], note); err != nil {
		return err
	}
	close(r.paused)
	<-r.release
	return r.FakeLedgerRepository.Save(ctx, ledger, streams[1:], note)
}

func TestValuationUseCase_WaitsForSaveInProgress(t *testing.T) {
	repo := &pausingRepo{
		FakeLedgerRepository: mocks.NewFakeLedgerRepository(),
		paused:               make(chan struct{}),
		release:              make(chan struct{}),
	}
	repo.Put(fundedLedger("alice", "1000", "USD"))
	clock := &mocks.FixedClock{T: t0}
	ids := &mocks.SequenceIDGenerator{}
	gw := usecase.NewQuoteGateway(mocks.NewFakeQuoteProvider(quote("ACME", "100", "USD")), mocks.NewFakeQuoteCache(),
		usecase.QuoteGatewayConfig{}, clock, nil, zerolog.Nop())

	locks := usecase.NewOwnerLocks()
	portfolio := usecase.NewPortfolioUseCase(repo, locks, usecase.NewTransactionEngine("MXN", ids, clock),
		gw, newConverter(), nil, ids, clock, nil, zerolog.Nop())
	valuation := usecase.NewValuationUseCase(repo, locks, gw, newConverter(), clock, nil, zerolog.Nop())
	ctx := context.Background()

	bought := make(chan error, 1)
	go func() {
		_, err := portfolio.Buy(ctx, usecase.BuyInput{Owner: "alice", Symbol: "ACME", Quantity: dec("5"), Price: dec("100"), Currency: "USD"})
		bought <- err
	}()
	<-repo.paused

	valued := make(chan *domain.Valuation, 1)
	go func() {
		v, _ := valuation.ComputeValuation(ctx, "alice")
		valued <- v
	}()

	select {
	case <-valued:
		t.Fatal("valuation read the ledger while a save was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.release)
	require.NoError(t, <-bought)
	v := <-valued

	// 500 USD of cash plus 5 ACME at 100 USD, at 20 MXN per USD.
	assert.True(t, v.NetWorth.Equal(dec("20000")), "got %s", v.NetWorth)
	stored := repo.Stored("alice")
	require.Len(t, stored.History, 1)
	assert.True(t, stored.History[0].NetWorth.Equal(dec("20000")), "got %s", stored.History[0].NetWorth)
}

func TestValuationUseCase_SameDayHistoryIsUpdated(t *testing.T) {
	repo := mocks.NewFakeLedgerRepository()
	repo.Put(fundedLedger("alice", "100", "MXN"))
	clock := &mocks.FixedClock{T: t0}
	uc := newValuationUseCase(repo, mocks.NewFakeQuoteProvider(), clock, nil)

	_, err := uc.ComputeValuation(context.Background(), "alice")
	require.NoError(t, err)
	first := repo.Stored("alice").History

	repo.Put(func() *domain.Ledger {
		l := repo.Stored("alice")
		l.Cash = append(l.Cash, domain.CashRecord{ID: "c2", Owner: "alice", Amount: dec("50"), Currency: "MXN", Type: domain.CashDeposit, CreatedAt: t0})
		return l
	}())
	clock.Advance(3 * time.Hour)

	v, err := uc.ComputeValuation(context.Background(), "alice")
	require.NoError(t, err)
	second := repo.Stored("alice").History

	assert.Len(t, second, len(first))
	assert.True(t, second[0].NetWorth.Equal(dec("150")))
	assert.True(t, v.Change24h.IsZero(), "no earlier day to compare with")

	clock.Advance(24 * time.Hour)
	v, err = uc.ComputeValuation(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, repo.Stored("alice").History, 2)
	assert.True(t, v.Change24h.IsZero())
	assert.Equal(t, 2, v.Stats.Points)
}

func TestValuationUseCase_StorageFailures(t *testing.T) {
	t.Run("unreadable store values an empty ledger and skips saving", func(t *testing.T) {
		repo := mocks.NewFakeLedgerRepository()
		repo.LoadFunc = func(ctx context.Context, owner string) (*domain.Ledger, error) {
			return nil, errors.New("disk on fire")
		}
		saved := false
		repo.SaveFunc = func(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream, note string) error {
			saved = true
			return nil
		}
		uc := newValuationUseCase(repo, mocks.NewFakeQuoteProvider(), &mocks.FixedClock{T: t0}, nil)

		v, err := uc.ComputeValuation(context.Background(), "alice")
		require.NoError(t, err)
		assert.True(t, v.NetWorth.IsZero())
		assert.Empty(t, v.Holdings)
		assert.False(t, saved)
	})

	t.Run("failed history save still returns the valuation", func(t *testing.T) {
		repo := mocks.NewFakeLedgerRepository()
		repo.Put(fundedLedger("alice", "100", "MXN"))
		repo.SaveFunc = func(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream, note string) error {
			return errors.New("read-only filesystem")
		}
		metrics := &recordingMetrics{}
		uc := newValuationUseCase(repo, mocks.NewFakeQuoteProvider(), &mocks.FixedClock{T: t0}, metrics)

		v, err := uc.ComputeValuation(context.Background(), "alice")
		require.NoError(t, err)
		assert.True(t, v.NetWorth.Equal(dec("100")))
		assert.Equal(t, []string{"history"}, metrics.failures)
	})

	t.Run("invalid owner", func(t *testing.T) {
		uc := newValuationUseCase(mocks.NewFakeLedgerRepository(), nil, nil, nil)
		_, err := uc.ComputeValuation(context.Background(), "bad owner!")
		assert.ErrorIs(t, err, domain.ErrInvalidOwner)
	})
}

func TestIsStorageError(t *testing.T) {
	assert.True(t, usecase.IsStorageError(domain.ErrStorageReadFailed))
	assert.True(t, usecase.IsStorageError(errors.Join(errors.New("x"), domain.ErrStorageWriteFailed)))
	assert.False(t, usecase.IsStorageError(domain.ErrInsufficientFunds))
}
