package document

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/gofolio/internal/domain"
)

const timeLayout = time.RFC3339Nano

// Columns written for each stream, in order.
var streamColumns = map[domain.Stream][]string{
	domain.StreamPositions: {"id", "owner", "symbol", "quantity", "price", "currency", "sector", "note", "created_at"},
	domain.StreamCash:      {"id", "owner", "amount", "currency", "type", "note", "created_at"},
	domain.StreamSales:     {"id", "owner", "symbol", "quantity", "price", "currency", "realized_gain", "created_at"},
	domain.StreamDividends: {"id", "owner", "symbol", "amount", "currency", "created_at"},
	domain.StreamWatchlist: {"owner", "symbol", "buy_target", "sell_target", "note", "created_at"},
	domain.StreamHistory:   {"owner", "date", "net_worth"},
}

// Table is a decoded CSV document: a header and rows keyed by column.
type Table struct {
	Header []string
	Rows   []map[string]string
}

// Decode parses CSV content with a header line. Empty content yields an
// empty table.
func Decode(content []byte) (*Table, error) {
	t := &Table{}
	if len(bytes.TrimSpace(content)) == 0 {
		return t, nil
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff")))
	}
	t.Header = header

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Encode writes the table as CSV. columns come first; any other column in
// the existing header is kept after them so legacy fields survive a rewrite.
func (t *Table) Encode(columns []string) ([]byte, error) {
	header := append([]string(nil), columns...)
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	for _, c := range t.Header {
		if c != "" && !known[c] {
			header = append(header, c)
			known[c] = true
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		record := make([]string, len(header))
		for i, col := range header {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeStream renders the ledger's records of stream as rows.
func encodeStream(l *domain.Ledger, stream domain.Stream) []map[string]string {
	var rows []map[string]string
	switch stream {
	case domain.StreamPositions:
		for _, lot := range l.Lots {
			rows = append(rows, map[string]string{
				"id":         lot.ID,
				"owner":      l.Owner,
				"symbol":     lot.Symbol,
				"quantity":   lot.Quantity.String(),
				"price":      lot.Price.String(),
				"currency":   lot.Currency,
				"sector":     lot.Sector,
				"note":       lot.Note,
				"created_at": formatTime(lot.CreatedAt),
			})
		}
	case domain.StreamCash:
		for _, c := range l.Cash {
			rows = append(rows, map[string]string{
				"id":         c.ID,
				"owner":      l.Owner,
				"amount":     c.Amount.String(),
				"currency":   c.Currency,
				"type":       string(c.Type),
				"note":       c.Note,
				"created_at": formatTime(c.CreatedAt),
			})
		}
	case domain.StreamSales:
		for _, s := range l.Sales {
			rows = append(rows, map[string]string{
				"id":            s.ID,
				"owner":         l.Owner,
				"symbol":        s.Symbol,
				"quantity":      s.Quantity.String(),
				"price":         s.Price.String(),
				"currency":      s.Currency,
				"realized_gain": s.RealizedGain.String(),
				"created_at":    formatTime(s.CreatedAt),
			})
		}
	case domain.StreamDividends:
		for _, d := range l.Dividends {
			rows = append(rows, map[string]string{
				"id":         d.ID,
				"owner":      l.Owner,
				"symbol":     d.Symbol,
				"amount":     d.Amount.String(),
				"currency":   d.Currency,
				"created_at": formatTime(d.CreatedAt),
			})
		}
	case domain.StreamWatchlist:
		for _, w := range l.Watchlist {
			rows = append(rows, map[string]string{
				"owner":       l.Owner,
				"symbol":      w.Symbol,
				"buy_target":  w.BuyTarget.String(),
				"sell_target": w.SellTarget.String(),
				"note":        w.Note,
				"created_at":  formatTime(w.CreatedAt),
			})
		}
	case domain.StreamHistory:
		for _, p := range l.History {
			rows = append(rows, map[string]string{
				"owner":     l.Owner,
				"date":      p.Date,
				"net_worth": p.NetWorth.String(),
			})
		}
	}
	return rows
}

// decodeStream appends the rows of stream into l.
func decodeStream(l *domain.Ledger, stream domain.Stream, rows []map[string]string) error {
	for i, row := range rows {
		if err := decodeRow(l, stream, row); err != nil {
			return fmt.Errorf("%s row %d: %w", stream, i+1, err)
		}
	}
	return nil
}

func decodeRow(l *domain.Ledger, stream domain.Stream, row map[string]string) error {
	p := &rowParser{row: row}
	switch stream {
	case domain.StreamPositions:
		lot := domain.Lot{
			ID:        p.str("id"),
			Owner:     l.Owner,
			Symbol:    domain.NormalizeSymbol(p.str("symbol")),
			Quantity:  p.dec("quantity"),
			Price:     p.dec("price"),
			Currency:  domain.NormalizeCurrency(p.str("currency")),
			Sector:    p.str("sector"),
			Note:      p.str("note"),
			CreatedAt: p.timestamp("created_at"),
		}
		if lot.Sector == "" {
			lot.Sector = domain.DefaultSector
		}
		l.Lots = append(l.Lots, lot)
	case domain.StreamCash:
		l.Cash = append(l.Cash, domain.CashRecord{
			ID:        p.str("id"),
			Owner:     l.Owner,
			Amount:    p.dec("amount"),
			Currency:  domain.NormalizeCurrency(p.str("currency")),
			Type:      domain.CashType(strings.ToLower(p.str("type"))),
			Note:      p.str("note"),
			CreatedAt: p.timestamp("created_at"),
		})
	case domain.StreamSales:
		l.Sales = append(l.Sales, domain.SaleRecord{
			ID:           p.str("id"),
			Owner:        l.Owner,
			Symbol:       domain.NormalizeSymbol(p.str("symbol")),
			Quantity:     p.dec("quantity"),
			Price:        p.dec("price"),
			Currency:     domain.NormalizeCurrency(p.str("currency")),
			RealizedGain: p.dec("realized_gain"),
			CreatedAt:    p.timestamp("created_at"),
		})
	case domain.StreamDividends:
		l.Dividends = append(l.Dividends, domain.Dividend{
			ID:        p.str("id"),
			Owner:     l.Owner,
			Symbol:    domain.NormalizeSymbol(p.str("symbol")),
			Amount:    p.dec("amount"),
			Currency:  domain.NormalizeCurrency(p.str("currency")),
			CreatedAt: p.timestamp("created_at"),
		})
	case domain.StreamWatchlist:
		l.Watchlist = append(l.Watchlist, domain.WatchlistEntry{
			Owner:      l.Owner,
			Symbol:     domain.NormalizeSymbol(p.str("symbol")),
			BuyTarget:  p.dec("buy_target"),
			SellTarget: p.dec("sell_target"),
			Note:       p.str("note"),
			CreatedAt:  p.timestamp("created_at"),
		})
	case domain.StreamHistory:
		date := p.str("date")
		if date != "" {
			if t, err := time.Parse(domain.DateLayout, date); err == nil {
				date = t.Format(domain.DateLayout)
			} else if t, err := time.Parse(timeLayout, date); err == nil {
				date = domain.DateOf(t)
			} else {
				p.fail("date", err)
			}
		}
		l.History = append(l.History, domain.HistoryPoint{
			Owner:    l.Owner,
			Date:     date,
			NetWorth: p.dec("net_worth"),
		})
	}
	return p.err
}

// rowParser reads typed fields from a row and keeps the first error.
type rowParser struct {
	row map[string]string
	err error
}

func (p *rowParser) str(col string) string {
	return strings.TrimSpace(p.row[col])
}

func (p *rowParser) dec(col string) decimal.Decimal {
	v := p.str(col)
	if v == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.fail(col, err)
		return decimal.Zero
	}
	return d
}

func (p *rowParser) timestamp(col string) time.Time {
	v := p.str(col)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", domain.DateLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	p.fail(col, fmt.Errorf("unrecognized time %q", v))
	return time.Time{}
}

func (p *rowParser) fail(col string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
