package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/domain"
)

// ReportUseCase formats valuation summaries and ships them to a notifier.
type ReportUseCase struct {
	valuation *ValuationUseCase
	notifier  Notifier
	metrics   MetricsRecorder
	logger    zerolog.Logger
}

// NewReportUseCase creates a new ReportUseCase. notifier may be nil, in
// which case Send reports the channel as unconfigured.
func NewReportUseCase(valuation *ValuationUseCase, notifier Notifier, metrics MetricsRecorder, logger zerolog.Logger) *ReportUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &ReportUseCase{
		valuation: valuation,
		notifier:  notifier,
		metrics:   metrics,
		logger:    logger.With().Str("component", "report").Logger(),
	}
}

// Build computes the owner's valuation and renders it as Markdown.
func (uc *ReportUseCase) Build(ctx context.Context, owner string) (string, error) {
	v, err := uc.valuation.ComputeValuation(ctx, owner)
	if err != nil {
		return "", err
	}
	return FormatReport(v), nil
}

// Send builds the owner's report and delivers it. It never fails loudly:
// the outcome is reported through ok and detail.
func (uc *ReportUseCase) Send(ctx context.Context, owner string) (bool, string) {
	text, err := uc.Build(ctx, owner)
	if err != nil {
		return false, err.Error()
	}
	return uc.Deliver(ctx, owner, text)
}

// Deliver pushes an already built report through the notifier.
func (uc *ReportUseCase) Deliver(ctx context.Context, owner, text string) (bool, string) {
	if uc.notifier == nil {
		return false, "notification channel not configured"
	}

	ok, detail := uc.notifier.Send(ctx, text)
	uc.metrics.ObserveNotification(ok)
	if !ok {
		uc.logger.Warn().Str("owner", owner).Str("detail", detail).Msg("report not delivered")
	}
	return ok, detail
}

// FormatReport renders a valuation as a Markdown summary.
func FormatReport(v *domain.Valuation) string {
	var b strings.Builder
	ref := v.Reference

	fmt.Fprintf(&b, "# Portfolio of %s\n\n", v.Owner)
	fmt.Fprintf(&b, "_As of %s_\n\n", v.AsOf.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "- **Net worth:** %s\n", FormatMoney(v.NetWorth, ref))
	fmt.Fprintf(&b, "- **24h change:** %s (%s%%)\n", FormatMoney(v.Change24h, ref), signed(v.Change24hPct))
	fmt.Fprintf(&b, "- **Invested:** %s, market value %s\n", FormatMoney(v.Cost, ref), FormatMoney(v.MarketValue, ref))
	fmt.Fprintf(&b, "- **Unrealized P&L:** %s\n", FormatMoney(v.Unrealized, ref))
	fmt.Fprintf(&b, "- **Realized P&L:** %s, dividends %s\n", FormatMoney(v.RealizedRef, ref), FormatMoney(v.DividendsRef, ref))
	fmt.Fprintf(&b, "- **Cash:** %s\n", FormatMoney(v.CashRef, ref))

	if len(v.Cash) > 0 {
		b.WriteString("\n## Cash\n\n")
		for _, currency := range sortedCurrencies(v.Cash) {
			fmt.Fprintf(&b, "- %s\n", FormatMoney(v.Cash[currency], currency))
		}
	}

	if len(v.Holdings) > 0 {
		b.WriteString("\n## Holdings\n\n")
		b.WriteString("| Symbol | Qty | Price | Value | P&L | Day |\n")
		b.WriteString("|---|---:|---:|---:|---:|---:|\n")
		for _, h := range v.Holdings {
			price := FormatMoney(h.Price, h.Currency)
			if h.Stale {
				price += " *"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s%% |\n",
				h.Symbol, h.Quantity.String(), price,
				FormatMoney(h.MarketValueRef, ref), FormatMoney(h.UnrealizedPnLRef, ref), signed(h.ChangePct))
		}
		if len(v.StaleSymbols()) > 0 {
			b.WriteString("\n\\* valued at cost, no quote available\n")
		}
	}

	gainers, losers := v.Movers(ReportMovers)
	if len(gainers) > 0 || len(losers) > 0 {
		b.WriteString("\n## Movers\n\n")
		for _, h := range gainers {
			fmt.Fprintf(&b, "- ▲ %s %s%%\n", h.Symbol, signed(h.ChangePct))
		}
		for _, h := range losers {
			fmt.Fprintf(&b, "- ▼ %s %s%%\n", h.Symbol, signed(h.ChangePct))
		}
	}

	if alerts := v.Alerts(); len(alerts) > 0 {
		b.WriteString("\n## Watchlist alerts\n\n")
		for _, a := range alerts {
			fmt.Fprintf(&b, "- %s %s at %s\n", strings.ToUpper(string(a.Signal)), a.Entry.Symbol, FormatMoney(a.Price, a.Currency))
		}
	}

	return b.String()
}

// FormatMoney renders amount with the currency's symbol and precision,
// followed by the ISO code.
func FormatMoney(amount decimal.Decimal, currency string) string {
	currency = domain.NormalizeCurrency(currency)
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}

	factor := decimal.New(1, int32(cur.Fraction))
	minor := amount.Mul(factor).Round(0).IntPart()
	return money.New(minor, currency).Display() + " " + currency
}

func signed(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.IsPositive() {
		return "+" + s
	}
	return s
}
