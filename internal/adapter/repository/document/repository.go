package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

const ownerColumn = "owner"

// FileName returns the logical file name of stream.
func FileName(stream domain.Stream) string {
	return string(stream) + ".csv"
}

// LedgerRepository implements usecase.LedgerRepository on top of a
// DocumentStore. Each stream is one CSV document shared by every owner;
// a save rewrites only the saving owner's rows.
type LedgerRepository struct {
	store   usecase.DocumentStore
	timeout time.Duration
	logger  zerolog.Logger

	// mu serializes read-modify-write cycles on shared documents.
	mu sync.Mutex
}

// NewLedgerRepository creates a new LedgerRepository. timeout bounds each
// Load and Save; zero uses usecase.DefaultStoreTimeout.
func NewLedgerRepository(store usecase.DocumentStore, timeout time.Duration, logger zerolog.Logger) *LedgerRepository {
	if timeout <= 0 {
		timeout = usecase.DefaultStoreTimeout
	}
	return &LedgerRepository{
		store:   store,
		timeout: timeout,
		logger:  logger.With().Str("component", "ledger_repository").Logger(),
	}
}

// Load reads every stream and keeps the rows of owner. Missing documents
// are empty streams; any other failure aborts the load.
func (r *LedgerRepository) Load(ctx context.Context, owner string) (*domain.Ledger, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ledger := domain.NewLedger(owner)
	for _, stream := range domain.AllStreams {
		table, err := r.read(ctx, stream)
		if err != nil {
			return nil, err
		}
		if err := decodeStream(ledger, stream, ownerRows(table, owner)); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", FileName(stream), err)
		}
	}
	return ledger, nil
}

// Save replaces the owner's rows of each listed stream with the ledger's
// records. Streams are written one at a time in the given order; when a
// write fails, the streams already written are restored to their previous
// content so the save leaves no partial state behind.
func (r *LedgerRepository) Save(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream, note string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	pending, err := r.prepare(ctx, ledger, streams)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("%s: %s", ledger.Owner, note)
	for i, w := range pending {
		if err := r.store.Write(ctx, w.name, w.content, message); err != nil {
			r.restore(ctx, ledger.Owner, note, pending[:i])
			return fmt.Errorf("failed to write %s: %w", w.name, err)
		}
		r.logger.Debug().Str("owner", ledger.Owner).Str("document", w.name).Msg("stream saved")
	}
	return nil
}

// pendingWrite is the new content of one document and the content it
// replaces.
type pendingWrite struct {
	name     string
	content  []byte
	previous []byte
}

// prepare reads and re-encodes every listed stream before anything is
// written.
func (r *LedgerRepository) prepare(ctx context.Context, ledger *domain.Ledger, streams []domain.Stream) ([]pendingWrite, error) {
	seen := make(map[domain.Stream]bool, len(streams))
	pending := make([]pendingWrite, 0, len(streams))
	for _, stream := range streams {
		if seen[stream] {
			continue
		}
		seen[stream] = true

		columns, ok := streamColumns[stream]
		if !ok {
			return nil, fmt.Errorf("unknown stream %q", stream)
		}

		previous, err := r.readContent(ctx, stream)
		if err != nil {
			return nil, err
		}
		table, err := Decode(previous)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", FileName(stream), err)
		}
		if previous == nil {
			// Restoring a missing document leaves an empty stream.
			if previous, err = (&Table{}).Encode(columns); err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", FileName(stream), err)
			}
		}

		rows := make([]map[string]string, 0, len(table.Rows))
		for _, row := range table.Rows {
			if !sameOwner(row, ledger.Owner) {
				rows = append(rows, row)
			}
		}
		table.Rows = append(rows, encodeStream(ledger, stream)...)

		content, err := table.Encode(columns)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", FileName(stream), err)
		}
		pending = append(pending, pendingWrite{name: FileName(stream), content: content, previous: previous})
	}
	return pending, nil
}

// restore writes back the previous content of written, newest first. It
// runs on a fresh deadline since the save's context may be what failed.
func (r *LedgerRepository) restore(ctx context.Context, owner, note string, written []pendingWrite) {
	if len(written) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	message := fmt.Sprintf("%s: revert %s", owner, note)
	for i := len(written) - 1; i >= 0; i-- {
		w := written[i]
		if err := r.store.Write(ctx, w.name, w.previous, message); err != nil {
			r.logger.Error().Err(err).Str("owner", owner).Str("document", w.name).Msg("failed to restore document after partial save")
			continue
		}
		r.logger.Warn().Str("owner", owner).Str("document", w.name).Msg("document restored after partial save")
	}
}

// Owners lists every owner with at least one row in any stream.
func (r *LedgerRepository) Owners(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	seen := make(map[string]bool)
	var owners []string
	for _, stream := range domain.AllStreams {
		table, err := r.read(ctx, stream)
		if err != nil {
			return nil, err
		}
		for _, row := range table.Rows {
			owner := strings.TrimSpace(row[ownerColumn])
			if owner != "" && !seen[owner] {
				seen[owner] = true
				owners = append(owners, owner)
			}
		}
	}
	return owners, nil
}

func (r *LedgerRepository) read(ctx context.Context, stream domain.Stream) (*Table, error) {
	content, err := r.readContent(ctx, stream)
	if err != nil {
		return nil, err
	}
	table, err := Decode(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName(stream), err)
	}
	return table, nil
}

// readContent returns the raw document of stream, or nil when it does not
// exist yet.
func (r *LedgerRepository) readContent(ctx context.Context, stream domain.Stream) ([]byte, error) {
	doc, err := r.store.Read(ctx, FileName(stream))
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FileName(stream), err)
	}
	return doc.Content, nil
}

func ownerRows(t *Table, owner string) []map[string]string {
	var out []map[string]string
	for _, row := range t.Rows {
		if sameOwner(row, owner) {
			out = append(out, row)
		}
	}
	return out
}

func sameOwner(row map[string]string, owner string) bool {
	return strings.TrimSpace(row[ownerColumn]) == owner
}
