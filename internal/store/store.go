// Package store implements the containment store of spec.md §4.1: a
// sqlite-backed relational store of IP-prefix-keyed datasets, opened
// once at process start and held for the process lifetime.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store is a thin, cheap-to-clone handle over the single sqlite
// connection. Repositories (internal/repo) wrap it with typed CRUD;
// Store itself knows nothing about ROAs, ASPAs, or any other dataset.
type Store struct {
	zerolog.Logger

	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database file at path, verifies
// its schema, and resets it if verification fails. WAL is enabled on the
// main database per spec.md §4.1 "Policies".
func Open(path string, logger zerolog.Logger) (*Store, error) {
	dsn := "file:" + url.PathEscape(path) + "?_journal_mode=WAL&_foreign_keys=0&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer discipline, spec.md §5 "Shared resources"

	s := &Store{Logger: logger.With().Str("component", "store").Logger(), db: db, path: path}

	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// DB exposes the raw connection to repositories. Kept unexported-style
// (package-visible only) by convention — callers outside internal/repo
// should go through a repository, never raw SQL.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// ensureSchema verifies the schema is both the expected version and the
// expected table set, resetting (dropping everything and recreating)
// otherwise. Schema drift is never returned as an error: data is fully
// recoverable from upstream (spec.md §3.2, §4.1 "Failure semantics"),
// so callers just observe an empty dataset until the next refresh.
func (s *Store) ensureSchema(ctx context.Context) error {
	ok, err := s.schemaValid(ctx)
	if err != nil {
		return fmt.Errorf("store: schema check: %w", err)
	}
	if ok {
		return nil
	}

	s.Warn().Msg("schema missing or mismatched, resetting database")
	return s.reset(ctx)
}

func (s *Store) schemaValid(ctx context.Context) (bool, error) {
	var version string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		// table likely doesn't exist yet
		return false, nil
	case version != schemaVersion:
		return false, nil
	}

	actual, err := s.tableNames(ctx)
	if err != nil {
		return false, err
	}

	want := append([]string(nil), expectedTables...)
	sort.Strings(want)
	sort.Strings(actual)
	if len(want) != len(actual) {
		return false, nil
	}
	for i := range want {
		if want[i] != actual[i] {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
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

// reset drops every existing table (known or not) and recreates the
// schema from scratch, recording the current schema version.
func (s *Store) reset(ctx context.Context) error {
	existing, err := s.tableNames(ctx)
	if err != nil {
		return fmt.Errorf("store: list tables: %w", err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, name := range existing {
			if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS "`+name+`"`); err != nil {
				return fmt.Errorf("store: drop %s: %w", name, err)
			}
		}
		for _, stmt := range schemaDDL {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("store: create schema: %w", err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO meta(key, value) VALUES ('schema_version', ?)`, schemaVersion)
		return err
	})
}

// WithTx runs fn inside a transaction, committing on a nil return and
// rolling back otherwise. Every bulk_replace in internal/repo goes
// through this so a failed replace never leaves a dataset half-written
// (spec.md §4.2 "transactional" requirement).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: tx failed (%w), rollback also failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}
