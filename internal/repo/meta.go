package repo

import (
	"context"
	"database/sql"
	"time"
)

// metaTable centralizes the read/write of a dataset's singleton
// freshness row, shared by every repository's bulk_replace and by the
// refresh coordinator's freshness checks.
type metaTable struct {
	table string // e.g. "asinfo_meta"
}

func (m metaTable) get(ctx context.Context, q queryer, dataset string) (Meta, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT dataset, source_url, loaded_at, record_count FROM `+m.table+` WHERE dataset = ?`, dataset)

	var meta Meta
	var loadedAt int64
	if err := row.Scan(&meta.Dataset, &meta.SourceURL, &loadedAt, &meta.RecordCount); err != nil {
		if err == sql.ErrNoRows {
			return Meta{}, false, nil
		}
		return Meta{}, false, err
	}
	meta.LoadedAt = time.Unix(loadedAt, 0).UTC()
	return meta, true, nil
}

func (m metaTable) upsert(ctx context.Context, ex execer, dataset, sourceURL string, recordCount int, loadedAt time.Time) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO `+m.table+`(dataset, source_url, loaded_at, record_count) VALUES (?, ?, ?, ?)
		 ON CONFLICT(dataset) DO UPDATE SET source_url = excluded.source_url,
		   loaded_at = excluded.loaded_at, record_count = excluded.record_count`,
		dataset, sourceURL, loadedAt.Unix(), recordCount)
	return err
}

// queryer and execer let repository methods accept either *sql.DB or
// *sql.Tx without duplicating code.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
