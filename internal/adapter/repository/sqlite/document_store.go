// Package sqlite stores ledger documents in SQLite with a revision log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iho/gofolio/internal/domain"
	"github.com/iho/gofolio/internal/usecase"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    name       TEXT PRIMARY KEY,
    content    BLOB NOT NULL,
    version    INTEGER NOT NULL DEFAULT 1,
    message    TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS document_revisions (
    name       TEXT NOT NULL,
    version    INTEGER NOT NULL,
    content    BLOB NOT NULL,
    message    TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    PRIMARY KEY (name, version)
);`

const (
	selectDocumentSQL = `SELECT name, content, version, updated_at FROM documents WHERE name = ?`

	listDocumentsSQL = `SELECT name FROM documents ORDER BY name`

	upsertDocumentSQL = `INSERT INTO documents (name, content, version, message, updated_at)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT (name) DO UPDATE
SET content = excluded.content,
    version = documents.version + 1,
    message = excluded.message,
    updated_at = excluded.updated_at
RETURNING version`

	insertRevisionSQL = `INSERT INTO document_revisions (name, version, content, message, created_at)
VALUES (?, ?, ?, ?, ?)`

	selectRevisionsSQL = `SELECT version, message, created_at FROM document_revisions WHERE name = ? ORDER BY version DESC`
)

// Revision describes one past write of a document.
type Revision struct {
	Version   int64
	Message   string
	CreatedAt time.Time
}

// DocumentStore implements usecase.DocumentStore on SQLite.
type DocumentStore struct {
	db    *sql.DB
	clock usecase.Clock
}

// NewDocumentStore creates the schema when missing and returns the store.
func NewDocumentStore(ctx context.Context, db *sql.DB, clock usecase.Clock) (*DocumentStore, error) {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if clock == nil {
		clock = usecase.SystemClock{}
	}
	return &DocumentStore{db: db, clock: clock}, nil
}

// Read returns the current content of name.
func (s *DocumentStore) Read(ctx context.Context, name string) (*usecase.Document, error) {
	var (
		doc       usecase.Document
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, selectDocumentSQL, name).Scan(&doc.Name, &doc.Content, &doc.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at for %s: %w", name, err)
	}
	return &doc, nil
}

// Write replaces the content of name and appends a revision in one transaction.
func (s *DocumentStore) Write(ctx context.Context, name string, content []byte, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	var version int64
	if err := tx.QueryRowContext(ctx, upsertDocumentSQL, name, content, message, now).Scan(&version); err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, insertRevisionSQL, name, version, content, message, now); err != nil {
		return fmt.Errorf("failed to record revision of %s: %w", name, err)
	}
	return tx.Commit()
}

// List returns every document name.
func (s *DocumentStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, listDocumentsSQL)
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

// Revisions returns the write log of name, newest first.
func (s *DocumentStore) Revisions(ctx context.Context, name string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, selectRevisionsSQL, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var (
			r         Revision
			createdAt string
		)
		if err := rows.Scan(&r.Version, &r.Message, &createdAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, err
		}
		revs = append(revs, r)
	}
	return revs, rows.Err()
}

// Ping checks database connectivity.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ usecase.DocumentStore = (*DocumentStore)(nil)
