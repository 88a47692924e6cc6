package repo

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"
	"time"

	"github.com/bgpkit/monocle/internal/store"
)

// Pfx2asRepo wraps the pfx2as + pfx2as_meta tables and implements the
// four containment query shapes from spec.md §4.1.
type Pfx2asRepo struct {
	db *sql.DB
	m  metaTable
}

func NewPfx2asRepo(s *store.Store) *Pfx2asRepo {
	return &Pfx2asRepo{db: s.DB(), m: metaTable{table: "pfx2as_meta"}}
}

// Exact returns entries whose prefix is exactly p (MOAS: possibly several).
func (r *Pfx2asRepo) Exact(ctx context.Context, p netip.Prefix) ([]Pfx2asEntry, error) {
	key, err := store.EncodePrefix(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT prefix_str, prefix_length, origin_asn FROM pfx2as
		WHERE prefix_low = ? AND prefix_high = ?`, key.Low[:], key.High[:])
	if err != nil {
		return nil, fmt.Errorf("repo: pfx2as exact: %w", err)
	}
	defer rows.Close()
	return scanPfx2as(rows)
}

// Covering returns every entry whose prefix covers p (supernets),
// longest prefix first.
func (r *Pfx2asRepo) Covering(ctx context.Context, p netip.Prefix) ([]Pfx2asEntry, error) {
	key, err := store.EncodePrefix(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT prefix_str, prefix_length, origin_asn FROM pfx2as
		WHERE prefix_low <= ? AND prefix_high >= ?
		ORDER BY prefix_length DESC`, key.Low[:], key.High[:])
	if err != nil {
		return nil, fmt.Errorf("repo: pfx2as covering: %w", err)
	}
	defer rows.Close()
	return scanPfx2as(rows)
}

// Longest returns the single longest-prefix-match entry for p, the
// covering(p) result limited to its first row (which may be several
// origins under MOAS at the same, longest, prefix length).
func (r *Pfx2asRepo) Longest(ctx context.Context, p netip.Prefix) ([]Pfx2asEntry, error) {
	all, err := r.Covering(ctx, p)
	if err != nil || len(all) == 0 {
		return all, err
	}
	longest := all[0].PrefixLen
	var out []Pfx2asEntry
	for _, e := range all {
		if e.PrefixLen != longest {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// Covered returns every entry whose prefix is a proper subnet of p (an
// entry for p itself is excluded), shortest prefix first.
func (r *Pfx2asRepo) Covered(ctx context.Context, p netip.Prefix) ([]Pfx2asEntry, error) {
	key, err := store.EncodePrefix(p)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT prefix_str, prefix_length, origin_asn FROM pfx2as
		WHERE prefix_low >= ? AND prefix_high <= ?
		  AND NOT (prefix_low = ? AND prefix_high = ?)
		ORDER BY prefix_length ASC`, key.Low[:], key.High[:], key.Low[:], key.High[:])
	if err != nil {
		return nil, fmt.Errorf("repo: pfx2as covered: %w", err)
	}
	defer rows.Close()
	return scanPfx2as(rows)
}

// ByOrigin returns every entry originated by asn.
func (r *Pfx2asRepo) ByOrigin(ctx context.Context, asn uint32) ([]Pfx2asEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT prefix_str, prefix_length, origin_asn FROM pfx2as WHERE origin_asn = ?`, asn)
	if err != nil {
		return nil, fmt.Errorf("repo: pfx2as by origin: %w", err)
	}
	defer rows.Close()
	return scanPfx2as(rows)
}

func scanPfx2as(rows *sql.Rows) ([]Pfx2asEntry, error) {
	var out []Pfx2asEntry
	for rows.Next() {
		var e Pfx2asEntry
		if err := rows.Scan(&e.Prefix, &e.PrefixLen, &e.OriginASN); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// BulkReplace atomically replaces the entire pfx2as mapping.
func (r *Pfx2asRepo) BulkReplace(ctx context.Context, s *store.Store, entries []Pfx2asEntry, sourceURL string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM pfx2as`); err != nil {
			return fmt.Errorf("repo: clear pfx2as: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pfx2as(prefix_low, prefix_high, prefix_str, prefix_length, origin_asn)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			p, err := netip.ParsePrefix(e.Prefix)
			if err != nil {
				return fmt.Errorf("repo: pfx2as prefix %q: %w", e.Prefix, err)
			}
			key, err := store.EncodePrefix(p)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, key.Low[:], key.High[:], key.Str, key.Length, e.OriginASN); err != nil {
				return fmt.Errorf("repo: insert pfx2as %q: %w", e.Prefix, err)
			}
		}

		return r.m.upsert(ctx, tx, "pfx2as", sourceURL, len(entries), time.Now())
	})
}

// Meta returns the pfx2as dataset's freshness row.
func (r *Pfx2asRepo) Meta(ctx context.Context) (Meta, bool, error) {
	return r.m.get(ctx, r.db, "pfx2as")
}
