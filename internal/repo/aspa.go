package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bgpkit/monocle/internal/store"
)

// ASPARepo wraps rpki_aspas + rpki_meta (dataset key "aspas").
type ASPARepo struct {
	db *sql.DB
	m  metaTable
}

func NewASPARepo(s *store.Store) *ASPARepo {
	return &ASPARepo{db: s.DB(), m: metaTable{table: "rpki_meta"}}
}

// Get returns the ASPA record for customerASN, if one exists.
func (r *ASPARepo) Get(ctx context.Context, customerASN uint32) (*ASPA, error) {
	var providersJSON string
	err := r.db.QueryRowContext(ctx,
		`SELECT providers FROM rpki_aspas WHERE customer_asn = ?`, customerASN).Scan(&providersJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo: aspa get: %w", err)
	}

	var providers []uint32
	if err := json.Unmarshal([]byte(providersJSON), &providers); err != nil {
		return nil, fmt.Errorf("repo: aspa providers decode: %w", err)
	}
	return &ASPA{CustomerASN: customerASN, ProviderASN: providers}, nil
}

// FindByProvider returns every ASPA record listing asn as one of its
// providers.
func (r *ASPARepo) FindByProvider(ctx context.Context, asn uint32) ([]ASPA, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT customer_asn, providers FROM rpki_aspas`)
	if err != nil {
		return nil, fmt.Errorf("repo: aspa find by provider: %w", err)
	}
	defer rows.Close()

	var out []ASPA
	for rows.Next() {
		var a ASPA
		var providersJSON string
		if err := rows.Scan(&a.CustomerASN, &providersJSON); err != nil {
			return nil, err
		}
		var providers []uint32
		if err := json.Unmarshal([]byte(providersJSON), &providers); err != nil {
			return nil, fmt.Errorf("repo: aspa providers decode: %w", err)
		}
		for _, p := range providers {
			if p == asn {
				a.ProviderASN = providers
				out = append(out, a)
				break
			}
		}
	}
	return out, rows.Err()
}

// BulkReplace atomically replaces the entire ASPA set.
func (r *ASPARepo) BulkReplace(ctx context.Context, s *store.Store, aspas []ASPA, sourceURL string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rpki_aspas`); err != nil {
			return fmt.Errorf("repo: clear aspas: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO rpki_aspas(customer_asn, providers) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range aspas {
			providersJSON, err := json.Marshal(a.ProviderASN)
			if err != nil {
				return fmt.Errorf("repo: aspa providers encode: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, a.CustomerASN, string(providersJSON)); err != nil {
				return fmt.Errorf("repo: insert aspa %d: %w", a.CustomerASN, err)
			}
		}

		return r.m.upsert(ctx, tx, "aspas", sourceURL, len(aspas), time.Now())
	})
}

// Meta returns the ASPA dataset's freshness row.
func (r *ASPARepo) Meta(ctx context.Context) (Meta, bool, error) {
	return r.m.get(ctx, r.db, "aspas")
}
