package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// DateLayout is the calendar-day key of history points.
const DateLayout = "2006-01-02"

// HistoryPoint is the net worth of an owner on one calendar day, in the
// reference currency.
type HistoryPoint struct {
	Owner    string
	Date     string
	NetWorth decimal.Decimal
}

// DateOf returns the history key for t.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// UpsertHistory replaces the point sharing p's date or appends p. The
// result is sorted by date and holds at most one point per day.
func UpsertHistory(points []HistoryPoint, p HistoryPoint) []HistoryPoint {
	out := make([]HistoryPoint, 0, len(points)+1)
	replaced := false
	for _, existing := range points {
		if existing.Date == p.Date {
			if !replaced {
				out = append(out, p)
				replaced = true
			}
			continue
		}
		out = append(out, existing)
	}
	if !replaced {
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// PreviousPoint returns the latest point strictly before date.
func PreviousPoint(points []HistoryPoint, date string) (HistoryPoint, bool) {
	var (
		best  HistoryPoint
		found bool
	)
	for _, p := range points {
		if p.Date >= date {
			continue
		}
		if !found || p.Date > best.Date {
			best = p
			found = true
		}
	}
	return best, found
}

// HistoryStats summarizes the value-history series.
type HistoryStats struct {
	Points         int
	MeanReturnPct  float64
	VolatilityPct  float64
	MaxDrawdownPct float64
}

// ComputeHistoryStats derives return statistics from consecutive points.
// Points with a non-positive predecessor are skipped.
func ComputeHistoryStats(points []HistoryPoint) HistoryStats {
	sorted := make([]HistoryPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	stats := HistoryStats{Points: len(sorted)}
	if len(sorted) == 0 {
		return stats
	}

	returns := make([]float64, 0, len(sorted))
	peak := sorted[0].NetWorth.InexactFloat64()
	for i, p := range sorted {
		value := p.NetWorth.InexactFloat64()
		if value > peak {
			peak = value
		}
		if peak > 0 {
			if dd := (peak - value) / peak * 100; dd > stats.MaxDrawdownPct {
				stats.MaxDrawdownPct = dd
			}
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1].NetWorth.InexactFloat64()
		if prev <= 0 {
			continue
		}
		returns = append(returns, (value-prev)/prev*100)
	}

	switch len(returns) {
	case 0:
	case 1:
		stats.MeanReturnPct = returns[0]
	default:
		stats.MeanReturnPct, stats.VolatilityPct = stat.MeanStdDev(returns, nil)
	}
	return stats
}
