package repo

import (
	"context"
	"testing"
)

func TestAS2RelNeighborsReorientsRelationship(t *testing.T) {
	s := openTestStore(t)
	repo := NewAS2RelRepo(s)
	ctx := context.Background()

	edges := []Edge{
		{ASN1: 100, ASN2: 200, PeersCount: 5, PathsCount: 50, Rel: RelCustomer}, // 100 is customer of 200
		{ASN1: 300, ASN2: 100, PeersCount: 3, PathsCount: 30, Rel: RelCustomer}, // 300 is customer of 100
		{ASN1: 100, ASN2: 400, PeersCount: 1, PathsCount: 10, Rel: RelPeer},
	}
	if err := repo.BulkReplace(ctx, s, edges, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	neighbors, err := repo.Neighbors(ctx, 100)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("want 3 neighbors, got %d", len(neighbors))
	}

	byNeighbor := map[uint32]Relationship{}
	for _, e := range neighbors {
		byNeighbor[e.ASN2] = e.Rel
	}
	if byNeighbor[200] != RelCustomer {
		t.Errorf("want 100's relation to 200 = customer, got %v", byNeighbor[200])
	}
	if byNeighbor[300] != RelProvider {
		t.Errorf("want 100's relation to 300 = provider (reversed), got %v", byNeighbor[300])
	}
	if byNeighbor[400] != RelPeer {
		t.Errorf("want 100's relation to 400 = peer, got %v", byNeighbor[400])
	}
}

func TestAS2RelConnectivitySummary(t *testing.T) {
	s := openTestStore(t)
	repo := NewAS2RelRepo(s)
	ctx := context.Background()

	edges := []Edge{
		{ASN1: 1, ASN2: 2, PeersCount: 10, Rel: RelCustomer},
		{ASN1: 1, ASN2: 3, PeersCount: 20, Rel: RelCustomer},
		{ASN1: 1, ASN2: 4, PeersCount: 5, Rel: RelPeer},
	}
	if err := repo.BulkReplace(ctx, s, edges, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	summary, err := repo.ConnectivitySummary(ctx, 1, 1)
	if err != nil {
		t.Fatalf("connectivity summary: %v", err)
	}
	if summary.UpstreamCount != 2 || summary.PeerCount != 1 || summary.TotalNeighbors != 3 {
		t.Fatalf("unexpected partition counts: %+v", summary)
	}
	if len(summary.TopUpstreams) != 1 || summary.TopUpstreams[0].ASN2 != 3 {
		t.Errorf("want top upstream to be asn 3 (peers_count 20), got %+v", summary.TopUpstreams)
	}
}

func TestAS2RelPairReversesWhenStoredInverted(t *testing.T) {
	s := openTestStore(t)
	repo := NewAS2RelRepo(s)
	ctx := context.Background()

	if err := repo.BulkReplace(ctx, s, []Edge{{ASN1: 9, ASN2: 5, Rel: RelProvider}}, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	e, err := repo.Pair(ctx, 5, 9)
	if err != nil {
		t.Fatalf("pair: %v", err)
	}
	if e == nil {
		t.Fatal("want edge, got nil")
	}
	if e.Rel != RelCustomer {
		t.Errorf("want reversed relation (customer), got %v", e.Rel)
	}
}
