// Package store is the typed adapter over the primary PostgreSQL record
// store: postings keyed by their content-derived identifier, users, and the
// append-only search/click logs.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jobstream-labs/jobstream/pkg/postgres"
)

// Store wraps the shared PostgreSQL client. It is safe for concurrent use
// and intended to be constructed once at process start and passed to every
// component that needs it.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

// New creates a Store on top of an established PostgreSQL client.
func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "record-store"),
	}
}

// Ping verifies store connectivity. The ingest engine uses it to tell a
// per-record failure from a dead connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.DB.PingContext(ctx)
}

// schema contains the table definitions for the record store, applied
// idempotently by EnsureSchema.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id      UUID PRIMARY KEY,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		username     TEXT NOT NULL UNIQUE,
		first_name   TEXT NOT NULL,
		last_name    TEXT NOT NULL DEFAULT 'Not specified',
		email        TEXT NOT NULL DEFAULT 'Not specified',
		password     TEXT NOT NULL,
		skills       JSONB NOT NULL DEFAULT '[]',
		work_history JSONB NOT NULL DEFAULT '[]',
		preferences  JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS postings (
		uuid        UUID PRIMARY KEY,
		skipped     BOOLEAN NOT NULL DEFAULT FALSE,
		scraped_at  TIMESTAMPTZ NOT NULL,
		source      TEXT NOT NULL,
		job_id      TEXT NOT NULL,
		title       TEXT NOT NULL,
		company     TEXT NOT NULL,
		location    TEXT NOT NULL,
		posted_date TEXT NOT NULL,
		link        TEXT NOT NULL,
		description TEXT NOT NULL,
		seniority   TEXT NOT NULL,
		emp_type    TEXT NOT NULL,
		job_func    TEXT NOT NULL,
		industry    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS searches (
		search_id UUID PRIMARY KEY,
		user_id   UUID NOT NULL,
		ts        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		query     TEXT NOT NULL,
		results   JSONB NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS searches_user_ts ON searches (user_id, ts DESC)`,
	`CREATE TABLE IF NOT EXISTS clicks (
		click_id UUID PRIMARY KEY,
		user_id  UUID NOT NULL,
		ts       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		job_id   UUID NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS clicks_user_ts ON clicks (user_id, ts DESC)`,
}

// EnsureSchema creates the record store tables if they do not exist. Invoked
// by the admin setup endpoint and safe to call repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	s.logger.Info("record store schema ensured")
	return nil
}
