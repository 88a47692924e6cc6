package repo

import (
	"context"
	"testing"
)

func TestAsinfoGetFullJoinsOptionalTables(t *testing.T) {
	s := openTestStore(t)
	repo := NewAsinfoRepo(s)
	ctx := context.Background()

	heg := 0.42
	pop := int64(1000)
	records := []AsinfoRecord{
		{ASN: 13335, Name: "CLOUDFLARENET", Country: "US", OrgID: "ORG-1", OrgName: "Cloudflare, Inc.",
			Hegemony: &heg, Population: &pop},
		{ASN: 64500, Name: "example-as", Country: "ZZ", OrgID: ""},
	}
	if err := repo.BulkReplace(ctx, s, records, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	full, err := repo.GetFull(ctx, 13335)
	if err != nil {
		t.Fatalf("get full: %v", err)
	}
	if full == nil {
		t.Fatal("want record, got nil")
	}
	if full.OrgName != "Cloudflare, Inc." {
		t.Errorf("want joined org name, got %q", full.OrgName)
	}
	if full.Hegemony == nil || *full.Hegemony != heg {
		t.Errorf("want hegemony %v, got %v", heg, full.Hegemony)
	}

	noOrg, err := repo.GetFull(ctx, 64500)
	if err != nil {
		t.Fatalf("get full (no org): %v", err)
	}
	if noOrg == nil || noOrg.OrgName != "" {
		t.Errorf("want empty org name for asn with no org_id, got %+v", noOrg)
	}

	missing, err := repo.GetFull(ctx, 999)
	if err != nil {
		t.Fatalf("get full (missing): %v", err)
	}
	if missing != nil {
		t.Errorf("want nil for unknown asn, got %+v", missing)
	}
}

func TestAsinfoSearchTextMatchesNameOrOrg(t *testing.T) {
	s := openTestStore(t)
	repo := NewAsinfoRepo(s)
	ctx := context.Background()

	records := []AsinfoRecord{
		{ASN: 1, Name: "acme-transit", OrgID: "O1", OrgName: "Acme Corp"},
		{ASN: 2, Name: "other", OrgID: "O2", OrgName: "Globex"},
	}
	if err := repo.BulkReplace(ctx, s, records, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	got, err := repo.SearchText(ctx, "acme")
	if err != nil {
		t.Fatalf("search_text: %v", err)
	}
	if len(got) != 1 || got[0].ASN != 1 {
		t.Fatalf("want asn 1 matched by name, got %+v", got)
	}
}

func TestAsinfoNamesBatch(t *testing.T) {
	s := openTestStore(t)
	repo := NewAsinfoRepo(s)
	ctx := context.Background()

	records := []AsinfoRecord{
		{ASN: 1, Name: "one"},
		{ASN: 2, Name: "two"},
	}
	if err := repo.BulkReplace(ctx, s, records, "u"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	names, err := repo.NamesBatch(ctx, []uint32{1, 2, 3})
	if err != nil {
		t.Fatalf("names_batch: %v", err)
	}
	if names[1] != "one" || names[2] != "two" {
		t.Fatalf("unexpected names: %+v", names)
	}
	if _, ok := names[3]; ok {
		t.Errorf("want no entry for unknown asn 3")
	}
}
