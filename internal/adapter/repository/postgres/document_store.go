package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

const (
	selectDocumentSQL = `SELECT name, content, version, updated_at FROM documents WHERE name = $1`

	listDocumentsSQL = `SELECT name FROM documents ORDER BY name`

	upsertDocumentSQL = `INSERT INTO documents (name, content, version, message, updated_at)
VALUES ($1, $2, 1, $3, $4)
ON CONFLICT (name) DO UPDATE
SET content = EXCLUDED.content,
    version = documents.version + 1,
    message = EXCLUDED.message,
    updated_at = EXCLUDED.updated_at
RETURNING version`

	insertRevisionSQL = `INSERT INTO document_revisions (name, version, content, message, created_at)
VALUES ($1, $2, $3, $4, $5)`
)

type pgxPool interface {
	Begin(context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentStore implements usecase.DocumentStore on PostgreSQL. Every write
// bumps the document version and appends a revision row.
type DocumentStore struct {
	pool    pgxPool
	retrier *Retrier
	clock   usecase.Clock
}

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(pool *pgxpool.Pool, logger zerolog.Logger) *DocumentStore {
	return newDocumentStoreWithPool(pool, NewRetrier(logger), usecase.SystemClock{})
}

func newDocumentStoreWithPool(pool pgxPool, retrier *Retrier, clock usecase.Clock) *DocumentStore {
	return &DocumentStore{pool: pool, retrier: retrier, clock: clock}
}

// Read returns the current content of name.
func (s *DocumentStore) Read(ctx context.Context, name string) (*usecase.Document, error) {
	var doc usecase.Document
	err := s.pool.QueryRow(ctx, selectDocumentSQL, name).Scan(&doc.Name, &doc.Content, &doc.Version, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Write replaces the content of name inside one transaction, retrying on
// serialization failures.
func (s *DocumentStore) Write(ctx context.Context, name string, content []byte, message string) error {
	return s.retrier.Retry(ctx, func() error {
		return s.write(ctx, name, content, message)
	})
}

func (s *DocumentStore) write(ctx context.Context, name string, content []byte, message string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	var version int64
	if err := tx.QueryRow(ctx, upsertDocumentSQL, name, content, message, now).Scan(&version); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to upsert document %s: %w", name, err)
	}

	if _, err := tx.Exec(ctx, insertRevisionSQL, name, version, content, message, now); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to record revision of %s: %w", name, err)
	}

	return tx.Commit(ctx)
}

// List returns every document name.
func (s *DocumentStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listDocumentsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Ping checks database connectivity.
func (s *DocumentStore) Ping(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

var _ usecase.DocumentStore = (*DocumentStore)(nil)
