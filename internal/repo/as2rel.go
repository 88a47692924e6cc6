package repo

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/bgpkit/monocle/internal/store"
)

// AS2RelRepo wraps as2rel + as2rel_meta. Rows are stored oriented
// asn1 -> asn2; Neighbors reorients every result so ASN1 is always the
// queried ASN and Rel is always relative to it.
type AS2RelRepo struct {
	db *sql.DB
	m  metaTable
}

func NewAS2RelRepo(s *store.Store) *AS2RelRepo {
	return &AS2RelRepo{db: s.DB(), m: metaTable{table: "as2rel_meta"}}
}

// Neighbors returns every edge touching asn, reoriented so ASN1 == asn.
func (r *AS2RelRepo) Neighbors(ctx context.Context, asn uint32) ([]Edge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT asn2, peers_count, paths_count, rel FROM as2rel WHERE asn1 = ?
		UNION ALL
		SELECT asn1, peers_count, paths_count, -rel FROM as2rel WHERE asn2 = ?`,
		asn, asn)
	if err != nil {
		return nil, fmt.Errorf("repo: as2rel neighbors: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		e := Edge{ASN1: asn}
		var rel int
		if err := rows.Scan(&e.ASN2, &e.PeersCount, &e.PathsCount, &rel); err != nil {
			return nil, err
		}
		e.Rel = Relationship(rel)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Pair returns the edge between a and b, oriented ASN1 == a, if one exists.
func (r *AS2RelRepo) Pair(ctx context.Context, a, b uint32) (*Edge, error) {
	var e Edge
	var rel int
	err := r.db.QueryRowContext(ctx, `
		SELECT peers_count, paths_count, rel FROM as2rel WHERE asn1 = ? AND asn2 = ?`,
		a, b).Scan(&e.PeersCount, &e.PathsCount, &rel)
	if err == nil {
		e.ASN1, e.ASN2, e.Rel = a, b, Relationship(rel)
		return &e, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("repo: as2rel pair: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT peers_count, paths_count, rel FROM as2rel WHERE asn1 = ? AND asn2 = ?`,
		b, a).Scan(&e.PeersCount, &e.PathsCount, &rel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("repo: as2rel pair: %w", err)
	}
	e.ASN1, e.ASN2, e.Rel = a, b, Relationship(-rel)
	return &e, nil
}

// ConnectivitySummary partitions asn's neighbors into upstreams
// (Rel == RelCustomer), downstreams (Rel == RelProvider), and peers
// (Rel == RelPeer), per spec.md §4.2.
func (r *AS2RelRepo) ConnectivitySummary(ctx context.Context, asn uint32, topN int) (ConnectivitySummary, error) {
	neighbors, err := r.Neighbors(ctx, asn)
	if err != nil {
		return ConnectivitySummary{}, err
	}

	var ups, downs, peers []Edge
	for _, e := range neighbors {
		switch e.Rel {
		case RelCustomer:
			ups = append(ups, e)
		case RelProvider:
			downs = append(downs, e)
		default:
			peers = append(peers, e)
		}
	}

	total := len(neighbors)
	summary := ConnectivitySummary{
		ASN:             asn,
		UpstreamCount:   len(ups),
		DownstreamCount: len(downs),
		PeerCount:       len(peers),
		TotalNeighbors:  total,
		TopUpstreams:    topEdges(ups, topN),
		TopDownstreams:  topEdges(downs, topN),
		TopPeers:        topEdges(peers, topN),
	}
	if total > 0 {
		summary.UpstreamPct = 100 * float64(len(ups)) / float64(total)
		summary.DownstreamPct = 100 * float64(len(downs)) / float64(total)
		summary.PeerPct = 100 * float64(len(peers)) / float64(total)
	}
	return summary, nil
}

// topEdges sorts by PeersCount DESC then ASN2 ASC for stability, and
// clips to n (n <= 0 means unbounded).
func topEdges(edges []Edge, n int) []Edge {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].PeersCount != edges[j].PeersCount {
			return edges[i].PeersCount > edges[j].PeersCount
		}
		return edges[i].ASN2 < edges[j].ASN2
	})
	if n > 0 && len(edges) > n {
		edges = edges[:n]
	}
	return edges
}

// BulkReplace atomically replaces the entire AS relationship graph.
func (r *AS2RelRepo) BulkReplace(ctx context.Context, s *store.Store, edges []Edge, sourceURL string) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM as2rel`); err != nil {
			return fmt.Errorf("repo: clear as2rel: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO as2rel(asn1, asn2, peers_count, paths_count, rel) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range edges {
			if _, err := stmt.ExecContext(ctx, e.ASN1, e.ASN2, e.PeersCount, e.PathsCount, int(e.Rel)); err != nil {
				return fmt.Errorf("repo: insert as2rel %d-%d: %w", e.ASN1, e.ASN2, err)
			}
		}

		return r.m.upsert(ctx, tx, "as2rel", sourceURL, len(edges), time.Now())
	})
}

// Meta returns the AS2Rel dataset's freshness row.
func (r *AS2RelRepo) Meta(ctx context.Context) (Meta, bool, error) {
	return r.m.get(ctx, r.db, "as2rel")
}
