package repo

import (
	"context"
	"database/sql"
	"fmt"
	"net/netip"
	"time"

	"github.com/bgpkit/monocle/internal/store"
)

// ROARepo wraps rpki_roas + rpki_meta. The dataset key it uses in
// rpki_meta is "roas"; ASPAs share the table under "aspas".
type ROARepo struct {
	db *sql.DB
	m  metaTable
}

func NewROARepo(s *store.Store) *ROARepo {
	return &ROARepo{db: s.DB(), m: metaTable{table: "rpki_meta"}}
}

// GetCovering returns every ROA whose prefix covers p, longest prefix
// first (spec.md §4.1 "covering(p)").
func (r *ROARepo) GetCovering(ctx context.Context, p netip.Prefix) ([]ROA, error) {
	key, err := store.EncodePrefix(p)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT prefix_str, prefix_length, max_length, origin_asn, trust_anchor
		FROM rpki_roas
		WHERE prefix_low <= ? AND prefix_high >= ?
		ORDER BY prefix_length DESC`,
		key.Low[:], key.High[:])
	if err != nil {
		return nil, fmt.Errorf("repo: roa covering: %w", err)
	}
	defer rows.Close()

	return scanROAs(rows)
}

// GetByASN returns every ROA whose origin_asn is asn.
func (r *ROARepo) GetByASN(ctx context.Context, asn uint32) ([]ROA, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT prefix_str, prefix_length, max_length, origin_asn, trust_anchor
		FROM rpki_roas WHERE origin_asn = ?`, asn)
	if err != nil {
		return nil, fmt.Errorf("repo: roa by asn: %w", err)
	}
	defer rows.Close()

	return scanROAs(rows)
}

func scanROAs(rows *sql.Rows) ([]ROA, error) {
	var out []ROA
	for rows.Next() {
		var roa ROA
		if err := rows.Scan(&roa.Prefix, &roa.PrefixLen, &roa.MaxLength, &roa.OriginASN, &roa.TrustAnchor); err != nil {
			return nil, err
		}
		out = append(out, roa)
	}
	return out, rows.Err()
}

// BulkReplace atomically replaces the entire ROA set and updates the
// rpki_meta "roas" row, or leaves existing data intact on any failure.
func (r *ROARepo) BulkReplace(ctx context.Context, s *store.Store, roas []ROA, sourceURL string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rpki_roas`); err != nil {
			return fmt.Errorf("repo: clear roas: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO rpki_roas(prefix_low, prefix_high, prefix_str, prefix_length, max_length, origin_asn, trust_anchor)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(prefix_str, origin_asn, trust_anchor) DO NOTHING`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, roa := range roas {
			p, err := netip.ParsePrefix(roa.Prefix)
			if err != nil {
				return fmt.Errorf("repo: roa prefix %q: %w", roa.Prefix, err)
			}
			key, err := store.EncodePrefix(p)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, key.Low[:], key.High[:], key.Str, key.Length,
				roa.MaxLength, roa.OriginASN, roa.TrustAnchor); err != nil {
				return fmt.Errorf("repo: insert roa %q: %w", roa.Prefix, err)
			}
		}

		return r.m.upsert(ctx, tx, "roas", sourceURL, len(roas), time.Now())
	})
}

// Meta returns the ROA dataset's freshness row.
func (r *ROARepo) Meta(ctx context.Context) (Meta, bool, error) {
	return r.m.get(ctx, r.db, "roas")
}
