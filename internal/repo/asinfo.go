package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bgpkit/monocle/internal/store"
)

// AsinfoRepo wraps asinfo_core plus the four optional provider tables
// joined on asn (spec.md §3.1, §4.2).
type AsinfoRepo struct {
	db *sql.DB
	m  metaTable
}

func NewAsinfoRepo(s *store.Store) *AsinfoRepo {
	return &AsinfoRepo{db: s.DB(), m: metaTable{table: "asinfo_meta"}}
}

// GetFull returns the core record for asn left-joined with every
// optional provider table, or nil if asn is unknown.
func (r *AsinfoRepo) GetFull(ctx context.Context, asn uint32) (*AsinfoFull, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT c.asn, c.name, c.country, c.org_id, COALESCE(o.org_name, ''),
		       p.data, h.value, pop.value
		FROM asinfo_core c
		LEFT JOIN asinfo_org o ON o.org_id = c.org_id
		LEFT JOIN asinfo_peeringdb p ON p.asn = c.asn
		LEFT JOIN asinfo_hegemony h ON h.asn = c.asn
		LEFT JOIN asinfo_population pop ON pop.asn = c.asn
		WHERE c.asn = ?`, asn)

	var full AsinfoFull
	var peeringDB sql.NullString
	var hegemony sql.NullFloat64
	var population sql.NullInt64
	err := row.Scan(&full.ASN, &full.Name, &full.Country, &full.OrgID, &full.OrgName,
		&peeringDB, &hegemony, &population)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo: asinfo get_full: %w", err)
	}

	if peeringDB.Valid {
		full.PeeringDB = []byte(peeringDB.String)
	}
	if hegemony.Valid {
		full.Hegemony = &hegemony.Float64
	}
	if population.Valid {
		full.Population = &population.Int64
	}
	return &full, nil
}

// SearchText matches core.name and org_name (case-insensitive substring),
// deduplicated by asn.
func (r *AsinfoRepo) SearchText(ctx context.Context, q string) ([]AsinfoCore, error) {
	like := "%" + strings.ToLower(q) + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT c.asn, c.name, c.country, c.org_id, COALESCE(o.org_name, '')
		FROM asinfo_core c
		LEFT JOIN asinfo_org o ON o.org_id = c.org_id
		WHERE LOWER(c.name) LIKE ? OR LOWER(COALESCE(o.org_name, '')) LIKE ?
		ORDER BY c.asn ASC`, like, like)
	if err != nil {
		return nil, fmt.Errorf("repo: asinfo search_text: %w", err)
	}
	defer rows.Close()

	var out []AsinfoCore
	for rows.Next() {
		var c AsinfoCore
		if err := rows.Scan(&c.ASN, &c.Name, &c.Country, &c.OrgID, &c.OrgName); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NamesBatch resolves asn -> display name for a batch of ASNs in one query.
func (r *AsinfoRepo) NamesBatch(ctx context.Context, asns []uint32) (map[uint32]string, error) {
	out := make(map[uint32]string, len(asns))
	if len(asns) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(asns)), ",")
	args := make([]any, len(asns))
	for i, a := range asns {
		args[i] = a
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT asn, name FROM asinfo_core WHERE asn IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("repo: asinfo names_batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var asn uint32
		var name string
		if err := rows.Scan(&asn, &name); err != nil {
			return nil, err
		}
		out[asn] = name
	}
	return out, rows.Err()
}

// BulkReplace atomically replaces the core table and every optional
// provider table that has data in records.
func (r *AsinfoRepo) BulkReplace(ctx context.Context, s *store.Store, records []AsinfoRecord, sourceURL string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"asinfo_core", "asinfo_org", "asinfo_peeringdb", "asinfo_hegemony", "asinfo_population"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("repo: clear %s: %w", table, err)
			}
		}

		coreStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO asinfo_core(asn, name, country, org_id) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer coreStmt.Close()

		orgStmt, err := tx.PrepareContext(ctx,
			`INSERT INTO asinfo_org(org_id, org_name) VALUES (?, ?) ON CONFLICT(org_id) DO NOTHING`)
		if err != nil {
			return err
		}
		defer orgStmt.Close()

		pdbStmt, err := tx.PrepareContext(ctx, `INSERT INTO asinfo_peeringdb(asn, data) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer pdbStmt.Close()

		hegStmt, err := tx.PrepareContext(ctx, `INSERT INTO asinfo_hegemony(asn, value) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer hegStmt.Close()

		popStmt, err := tx.PrepareContext(ctx, `INSERT INTO asinfo_population(asn, value) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer popStmt.Close()

		for _, rec := range records {
			if _, err := coreStmt.ExecContext(ctx, rec.ASN, rec.Name, rec.Country, rec.OrgID); err != nil {
				return fmt.Errorf("repo: insert asinfo_core %d: %w", rec.ASN, err)
			}
			if rec.OrgID != "" {
				if _, err := orgStmt.ExecContext(ctx, rec.OrgID, rec.OrgName); err != nil {
					return fmt.Errorf("repo: insert asinfo_org %s: %w", rec.OrgID, err)
				}
			}
			if len(rec.PeeringDB) > 0 {
				if _, err := pdbStmt.ExecContext(ctx, rec.ASN, string(rec.PeeringDB)); err != nil {
					return fmt.Errorf("repo: insert asinfo_peeringdb %d: %w", rec.ASN, err)
				}
			}
			if rec.Hegemony != nil {
				if _, err := hegStmt.ExecContext(ctx, rec.ASN, *rec.Hegemony); err != nil {
					return fmt.Errorf("repo: insert asinfo_hegemony %d: %w", rec.ASN, err)
				}
			}
			if rec.Population != nil {
				if _, err := popStmt.ExecContext(ctx, rec.ASN, *rec.Population); err != nil {
					return fmt.Errorf("repo: insert asinfo_population %d: %w", rec.ASN, err)
				}
			}
		}

		return r.m.upsert(ctx, tx, "asinfo", sourceURL, len(records), time.Now())
	})
}

// Meta returns the AS-info dataset's freshness row.
func (r *AsinfoRepo) Meta(ctx context.Context) (Meta, bool, error) {
	return r.m.get(ctx, r.db, "asinfo")
}
