package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
	"github.com/iho/gofolio/internal/usecase/mocks"
)

func newReportUseCase(notifier usecase.Notifier, metrics usecase.MetricsRecorder) *usecase.ReportUseCase {
	repo := mocks.NewFakeLedgerRepository()
	ledger := sampleLedger()
	ledger.Watchlist = []domain.WatchlistEntry{{Owner: "alice", Symbol: "MSFT", SellTarget: dec("400")}}
	repo.Put(ledger)

	provider := mocks.NewFakeQuoteProvider(
		domain.Quote{Symbol: "ACME", Price: dec("150"), Currency: "USD", ChangePct: dec("3.2")},
		domain.Quote{Symbol: "SAP.DE", Price: dec("170"), Currency: "EUR", ChangePct: dec("-1.5")},
		quote("MSFT", "410", "USD"),
	)
	valuation := newValuationUseCase(repo, provider, &mocks.FixedClock{T: t0}, nil)
	return usecase.NewReportUseCase(valuation, notifier, metrics, zerolog.Nop())
}

func TestReportUseCase_Build(t *testing.T) {
	uc := newReportUseCase(nil, nil)

	text, err := uc.Build(context.Background(), "alice")
	require.NoError(t, err)

	for _, want := range []string{
		"# Portfolio of alice",
		"## Cash",
		"## Holdings",
		"| ACME | 15 |",
		"WALMEX.MX",
		"valued at cost",
		"## Movers",
		"▲ ACME +3.20%",
		"▼ SAP.DE -1.50%",
		"## Watchlist alerts",
		"SELL MSFT at $410.00 USD",
	} {
		assert.Contains(t, text, want)
	}

	_, err = uc.Build(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
}

func TestReportUseCase_Send(t *testing.T) {
	tests := []struct {
		name         string
		notifier     *mocks.FakeNotifier
		expectOK     bool
		expectDetail string
	}{
		{
			name:         "delivered",
			notifier:     &mocks.FakeNotifier{},
			expectOK:     true,
			expectDetail: "sent",
		},
		{
			name: "rejected by channel",
			notifier: &mocks.FakeNotifier{SendFunc: func(ctx context.Context, text string) (bool, string) {
				return false, "chat not found"
			}},
			expectOK:     false,
			expectDetail: "chat not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &recordingMetrics{}
			uc := newReportUseCase(tt.notifier, metrics)

			ok, detail := uc.Send(context.Background(), "alice")

			assert.Equal(t, tt.expectOK, ok)
			assert.Equal(t, tt.expectDetail, detail)
			require.Len(t, tt.notifier.Messages, 1)
			assert.True(t, strings.HasPrefix(tt.notifier.Messages[0], "# Portfolio of alice"))
			assert.Equal(t, []bool{tt.expectOK}, metrics.notifications)
		})
	}

	t.Run("no channel configured", func(t *testing.T) {
		uc := newReportUseCase(nil, nil)
		ok, detail := uc.Send(context.Background(), "alice")
		assert.False(t, ok)
		assert.Equal(t, "notification channel not configured", detail)
	})
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1234.5", "USD", "$1,234.50 USD"},
		{"-5", "usd", "-$5.00 USD"},
		{"0.004", "USD", "$0.00 USD"},
		{"12", "ZZZ", "12.00 ZZZ"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+tt.currency, func(t *testing.T) {
			assert.Equal(t, tt.want, usecase.FormatMoney(dec(tt.amount), tt.currency))
		})
	}
}
