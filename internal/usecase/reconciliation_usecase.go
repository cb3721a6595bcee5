package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/domain"
)

// Reconciliation issue kinds
const (
	IssueUnmatchedDividend = "unmatched_dividend"
	IssueNegativeBalance   = "negative_balance"
	IssueEmptyLot          = "empty_lot"
	IssueDuplicateHistory  = "duplicate_history"
	IssueMissingCurrency   = "missing_currency"
)

// ReconciliationUseCase checks the internal consistency of owner ledgers.
type ReconciliationUseCase struct {
	repo  LedgerRepository
	clock Clock
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(repo LedgerRepository, clock Clock) *ReconciliationUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReconciliationUseCase{repo: repo, clock: clock}
}

// ReconciliationIssue is one inconsistency found in a ledger.
type ReconciliationIssue struct {
	Kind   string
	Detail string
}

// ReconciliationReport represents the result of reconciling one owner.
type ReconciliationReport struct {
	Owner      string
	Balances   map[string]decimal.Decimal
	Issues     []ReconciliationIssue
	Consistent bool
	CheckedAt  time.Time
}

// Reconcile verifies the owner's ledger. Unlike valuation, an unreadable
// store is reported as an error.
func (uc *ReconciliationUseCase) Reconcile(ctx context.Context, owner string) (*ReconciliationReport, error) {
	if err := domain.ValidateOwner(owner); err != nil {
		return nil, err
	}

	ledger, err := uc.repo.Load(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageReadFailed, err)
	}

	report := &ReconciliationReport{
		Owner:     owner,
		Balances:  ledger.Balances(),
		CheckedAt: uc.clock.Now(),
	}
	report.Issues = append(report.Issues, checkDividends(ledger)...)
	report.Issues = append(report.Issues, checkBalances(report.Balances)...)
	report.Issues = append(report.Issues, checkLots(ledger)...)
	report.Issues = append(report.Issues, checkHistory(ledger)...)
	report.Consistent = len(report.Issues) == 0

	return report, nil
}

// ReconcileAll reconciles every owner in owners.
func (uc *ReconciliationUseCase) ReconcileAll(ctx context.Context, owners []string) ([]*ReconciliationReport, error) {
	reports := make([]*ReconciliationReport, 0, len(owners))
	for _, owner := range owners {
		report, err := uc.Reconcile(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("failed to reconcile owner %s: %w", owner, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func checkDividends(ledger *domain.Ledger) []ReconciliationIssue {
	credits := make(map[string]int)
	for _, c := range ledger.Cash {
		if c.Type == domain.CashDividend {
			credits[dividendKey(c.Currency, c.Amount)]++
		}
	}

	var issues []ReconciliationIssue
	for _, d := range ledger.Dividends {
		key := dividendKey(d.Currency, d.Amount)
		if credits[key] > 0 {
			credits[key]--
			continue
		}
		issues = append(issues, ReconciliationIssue{
			Kind:   IssueUnmatchedDividend,
			Detail: fmt.Sprintf("dividend %s of %s %s has no cash credit", d.ID, d.Amount, d.Currency),
		})
	}
	return issues
}

func dividendKey(currency string, amount decimal.Decimal) string {
	return currency + "|" + amount.String()
}

func checkBalances(balances map[string]decimal.Decimal) []ReconciliationIssue {
	var issues []ReconciliationIssue
	for _, currency := range sortedCurrencies(balances) {
		if balances[currency].IsNegative() {
			issues = append(issues, ReconciliationIssue{
				Kind:   IssueNegativeBalance,
				Detail: fmt.Sprintf("%s balance is %s", currency, balances[currency]),
			})
		}
	}
	return issues
}

func checkLots(ledger *domain.Ledger) []ReconciliationIssue {
	var issues []ReconciliationIssue
	for _, lot := range ledger.Lots {
		if !lot.Quantity.IsPositive() {
			issues = append(issues, ReconciliationIssue{
				Kind:   IssueEmptyLot,
				Detail: fmt.Sprintf("lot %s of %s has quantity %s", lot.ID, lot.Symbol, lot.Quantity),
			})
		}
		if lot.Currency == "" {
			issues = append(issues, ReconciliationIssue{
				Kind:   IssueMissingCurrency,
				Detail: fmt.Sprintf("lot %s of %s has no currency", lot.ID, lot.Symbol),
			})
		}
	}
	return issues
}

func checkHistory(ledger *domain.Ledger) []ReconciliationIssue {
	seen := make(map[string]bool)
	var issues []ReconciliationIssue
	for _, p := range ledger.History {
		if seen[p.Date] {
			issues = append(issues, ReconciliationIssue{
				Kind:   IssueDuplicateHistory,
				Detail: "more than one history point on " + p.Date,
			})
		}
		seen[p.Date] = true
	}
	return issues
}
