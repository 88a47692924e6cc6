package repo

import (
	"context"
	"net/netip"
	"testing"

	"github.com/bgpkit/monocle/internal/store"
	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestROARepoBulkReplaceAndCovering(t *testing.T) {
	s := openTestStore(t)
	repo := NewROARepo(s)
	ctx := context.Background()

	roas := []ROA{
		{Prefix: "1.1.1.0/24", MaxLength: 24, OriginASN: 13335, TrustAnchor: "arin"},
		{Prefix: "1.0.0.0/8", MaxLength: 8, OriginASN: 3356, TrustAnchor: "arin"},
	}
	if err := repo.BulkReplace(ctx, s, roas, "https://example.test/roas"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	got, err := repo.GetCovering(ctx, netip.MustParsePrefix("1.1.1.0/24"))
	if err != nil {
		t.Fatalf("get covering: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 covering roas, got %d", len(got))
	}
	if got[0].Prefix != "1.1.1.0/24" {
		t.Errorf("want longest prefix first, got %s", got[0].Prefix)
	}

	byASN, err := repo.GetByASN(ctx, 3356)
	if err != nil {
		t.Fatalf("get by asn: %v", err)
	}
	if len(byASN) != 1 || byASN[0].Prefix != "1.0.0.0/8" {
		t.Errorf("unexpected by-asn result: %+v", byASN)
	}

	meta, ok, err := repo.Meta(ctx)
	if err != nil || !ok {
		t.Fatalf("meta: ok=%v err=%v", ok, err)
	}
	if meta.RecordCount != 2 {
		t.Errorf("want record_count 2, got %d", meta.RecordCount)
	}
}

func TestROARepoBulkReplaceIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	repo := NewROARepo(s)
	ctx := context.Background()

	roas := []ROA{{Prefix: "2.2.2.0/24", MaxLength: 24, OriginASN: 100, TrustAnchor: "ripe"}}
	if err := repo.BulkReplace(ctx, s, roas, "u"); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	if err := repo.BulkReplace(ctx, s, roas, "u"); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	got, err := repo.GetByASN(ctx, 100)
	if err != nil {
		t.Fatalf("get by asn: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 roa after repeated replace, got %d", len(got))
	}
}
