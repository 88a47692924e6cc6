package repo

import (
	"context"
	"net/netip"
	"testing"
)

func TestPfx2asLongestMatch(t *testing.T) {
	s := openTestStore(t)
	repo := NewPfx2asRepo(s)
	ctx := context.Background()

	entries := []Pfx2asEntry{
		{Prefix: "10.0.0.0/8", OriginASN: 174},
		{Prefix: "10.1.0.0/16", OriginASN: 64500},
	}
	if err := repo.BulkReplace(ctx, s, entries, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	got, err := repo.Longest(ctx, netip.MustParsePrefix("10.1.2.3/32"))
	if err != nil {
		t.Fatalf("longest: %v", err)
	}
	if len(got) != 1 || got[0].OriginASN != 64500 {
		t.Fatalf("want origin 64500, got %+v", got)
	}
}

func TestPfx2asMOASReturnsMultipleOrigins(t *testing.T) {
	s := openTestStore(t)
	repo := NewPfx2asRepo(s)
	ctx := context.Background()

	entries := []Pfx2asEntry{
		{Prefix: "8.8.8.0/24", OriginASN: 15169},
		{Prefix: "8.8.8.0/24", OriginASN: 65000},
	}
	if err := repo.BulkReplace(ctx, s, entries, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	got, err := repo.Exact(ctx, netip.MustParsePrefix("8.8.8.0/24"))
	if err != nil {
		t.Fatalf("exact: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 MOAS origins, got %d", len(got))
	}
}

func TestPfx2asCoveredExcludesExactMatch(t *testing.T) {
	s := openTestStore(t)
	repo := NewPfx2asRepo(s)
	ctx := context.Background()

	entries := []Pfx2asEntry{
		{Prefix: "192.168.0.0/16", OriginASN: 1},
		{Prefix: "192.168.1.0/24", OriginASN: 2},
	}
	if err := repo.BulkReplace(ctx, s, entries, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	got, err := repo.Covered(ctx, netip.MustParsePrefix("192.168.0.0/16"))
	if err != nil {
		t.Fatalf("covered: %v", err)
	}
	if len(got) != 1 || got[0].Prefix != "192.168.1.0/24" {
		t.Fatalf("want only the strict subnet, got %+v", got)
	}
}
