// Cuecore - Live-Show Cueing Collaboration and Library Server
// Copyright 2026 Stagelab Cooperative
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stagelab/cuecore

// Package store provides the SQLite-backed metadata index over projects,
// media and their association edges.
//
// The index lives in a single file next to the library tree. Writes follow
// an exclusive single-writer discipline: every mutation runs inside an
// explicit transaction that the owning service commits or rolls back while
// it performs the matching filesystem steps. Foreign keys are enforced so
// purging an entity cascades through the edge table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)

	"github.com/stagelab/cuecore/internal/errs"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so repository methods
// run identically inside and outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store owns the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if missing) the index at path and applies the
// schema. busy_timeout avoids "database locked" errors under the single
// writer plus concurrent readers.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping index: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate index: %w", err)
	}
	return s, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the handle for non-transactional reads.
func (s *Store) DB() Querier {
	return s.db
}

// Ping reports whether the index is reachable. Used by health probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// BeginTx starts a mutation transaction. Nesting is not supported.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS project (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		unix_name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created TEXT NOT NULL,
		modified TEXT NOT NULL,
		in_trash INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS media (
		uuid TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		unix_name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created TEXT NOT NULL,
		modified TEXT NOT NULL,
		duration TEXT,
		media_type TEXT NOT NULL,
		in_trash INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS project_media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL REFERENCES project(uuid) ON DELETE CASCADE,
		media TEXT NOT NULL REFERENCES media(uuid) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_project_media_project ON project_media(project);
	CREATE INDEX IF NOT EXISTS idx_project_media_media ON project_media(media);
	`
	_, err := s.db.Exec(schema)
	return err
}

// mapErr translates driver errors into the shared taxonomy: sql.ErrNoRows
// becomes NonExistentItemError, unique violations become ConflictError.
func mapErr(err error, uuid string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return &errs.NonExistentItemError{UUID: uuid}
	}
	if msg := err.Error(); strings.Contains(msg, "UNIQUE constraint failed") {
		field := "name"
		if strings.Contains(msg, "unix_name") {
			field = "unix_name"
		}
		return &errs.ConflictError{Field: field, Value: uuid}
	}
	return err
}
