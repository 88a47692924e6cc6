package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
)

func TestOpenCreatesExpectedSchema(t *testing.T) {
	s, err := Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	names, err := s.tableNames(context.Background())
	if err != nil {
		t.Fatalf("table names: %v", err)
	}
	if len(names) != len(expectedTables) {
		t.Fatalf("want %d tables, got %d: %v", len(expectedTables), len(names), names)
	}
}

func TestOpenResetsOnSchemaDrift(t *testing.T) {
	s, err := Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.DB().Exec(`DROP TABLE rpki_roas`); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	ok, err := s.schemaValid(context.Background())
	if err != nil {
		t.Fatalf("schema valid check: %v", err)
	}
	if ok {
		t.Fatal("want schema invalid after drop")
	}

	if err := s.ensureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	ok, err = s.schemaValid(context.Background())
	if err != nil {
		t.Fatalf("schema valid check after reset: %v", err)
	}
	if !ok {
		t.Fatal("want schema valid after reset")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, err := Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	boom := errFake("boom")
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES ('probe', 'x')`); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("want sentinel error, got %v", err)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM meta WHERE key = 'probe'`).Scan(&count); err != nil {
		t.Fatalf("count probe rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("want rollback to discard the insert, found %d rows", count)
	}
}

type errFake string

func (e errFake) Error() string { return string(e) }
