package methods

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgpkit/monocle/internal/lens"
	"github.com/bgpkit/monocle/internal/metrics"
	"github.com/bgpkit/monocle/internal/mrtpipe"
	"github.com/bgpkit/monocle/internal/refresh"
	"github.com/bgpkit/monocle/internal/repo"
	"github.com/bgpkit/monocle/internal/rpc"
	"github.com/bgpkit/monocle/internal/rpcerr"
	"github.com/bgpkit/monocle/internal/store"
)

type fakeBroker struct {
	files []mrtpipe.FileRef
}

func (b fakeBroker) Query(ctx context.Context, q mrtpipe.BrokerQuery) ([]mrtpipe.FileRef, error) {
	return b.files, nil
}

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	s, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	asinfo := repo.NewAsinfoRepo(s)
	as2rel := repo.NewAS2RelRepo(s)
	pfx2as := repo.NewPfx2asRepo(s)
	roas := repo.NewROARepo(s)
	aspas := repo.NewASPARepo(s)

	coord := refresh.New(zerolog.Nop(), metrics.New())
	coord.Register(refresh.Dataset{ID: "asinfo", MetaFn: asinfo.Meta, RefreshFn: func(context.Context) error { return nil }})
	coord.Register(refresh.Dataset{ID: "as2rel", MetaFn: as2rel.Meta, RefreshFn: func(context.Context) error { return nil }})
	coord.Register(refresh.Dataset{ID: "rpki", MetaFn: roas.Meta, RefreshFn: func(context.Context) error { return nil }})
	coord.Register(refresh.Dataset{ID: "pfx2as", MetaFn: pfx2as.Meta, RefreshFn: func(context.Context) error { return nil }})

	rpkiLens := lens.NewRPKILens(zerolog.Nop(), roas, aspas, coord, nil)
	inspectLens := lens.NewInspectLens(zerolog.Nop(), asinfo, as2rel, pfx2as, rpkiLens, coord)
	pipeline := mrtpipe.NewPipeline(zerolog.Nop(), fakeBroker{}, nil)

	return Deps{
		Logger:    zerolog.Nop(),
		Version:   "test",
		StartedAt: time.Now(),
		Store:     s,
		Asinfo:    asinfo,
		AS2Rel:    as2rel,
		Pfx2as:    pfx2as,
		ROAs:      roas,
		ASPAs:     aspas,
		RPKI:      rpkiLens,
		Inspect:   inspectLens,
		Coord:     coord,
		Pipeline:  pipeline,
	}
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return b
}

func TestRegisterBindsEveryMethod(t *testing.T) {
	d := newTestDeps(t)
	r := rpc.NewRegistry()
	Register(r, d)

	want := []string{
		"system.info", "system.methods", "time.parse", "ip.lookup", "ip.public",
		"country.lookup", "rpki.validate", "rpki.roas", "rpki.aspas",
		"inspect.query", "inspect.refresh", "as2rel.search", "as2rel.relationship",
		"as2rel.update", "pfx2as.lookup", "parse.start", "parse.cancel",
		"search.start", "search.cancel", "database.status", "database.refresh",
	}
	names := r.Names()
	got := make(map[string]bool, len(names))
	for _, n := range names {
		got[n] = true
	}
	for _, m := range want {
		if !got[m] {
			t.Errorf("missing registered method %q", m)
		}
	}
	if len(names) != len(want) {
		t.Errorf("want %d registered methods, got %d", len(want), len(names))
	}
}

func TestSystemInfoReportsVersion(t *testing.T) {
	d := newTestDeps(t)
	result, err := d.systemInfo(context.Background(), nil)
	if err != nil {
		t.Fatalf("system.info: %v", err)
	}
	info := result.(systemInfoResult)
	if info.Version != "test" {
		t.Errorf("want version test, got %s", info.Version)
	}
}

func TestTimeParseAcceptsUnixRelativeAndGeneral(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		value string
	}{
		{"unix", "1700000000"},
		{"relative", "-1h"},
		{"rfc3339", "2024-01-02T03:04:05Z"},
		{"loose", "2024-01-02 03:04:05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := d.timeParse(ctx, rawJSON(t, timeParseParams{Value: tt.value}))
			if err != nil {
				t.Fatalf("time.parse(%q): %v", tt.value, err)
			}
			if result.(timeParseResult).Unix == 0 {
				t.Errorf("want non-zero unix timestamp for %q", tt.value)
			}
		})
	}
}

func TestTimeParseRejectsGarbage(t *testing.T) {
	d := newTestDeps(t)
	_, err := d.timeParse(context.Background(), rawJSON(t, timeParseParams{Value: "not a time"}))
	if err == nil {
		t.Fatal("want error for unparseable value")
	}
	rerr, ok := err.(*rpcerr.Error)
	if !ok || rerr.Code != rpcerr.InvalidParams {
		t.Fatalf("want InvalidParams, got %v", err)
	}
}

func TestRpkiValidateNotInitializedOnEmptyCache(t *testing.T) {
	d := newTestDeps(t)
	_, err := d.rpkiValidate(context.Background(), rawJSON(t, rpkiValidateParams{Prefix: "1.1.1.0/24", ASN: 13335}))
	rerr, ok := err.(*rpcerr.Error)
	if !ok || rerr.Code != rpcerr.NotInitialized {
		t.Fatalf("want NotInitialized, got %v", err)
	}
}

func TestRpkiValidateAfterLoad(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	if err := d.ROAs.BulkReplace(ctx, d.Store, []repo.ROA{
		{Prefix: "1.1.1.0/24", MaxLength: 24, OriginASN: 13335, TrustAnchor: "arin"},
	}, "https://example.test/roas"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	result, err := d.rpkiValidate(ctx, rawJSON(t, rpkiValidateParams{Prefix: "1.1.1.0/24", ASN: 13335}))
	if err != nil {
		t.Fatalf("rpki.validate: %v", err)
	}
	if result.(lens.ValidationResult).State != lens.Valid {
		t.Errorf("want Valid, got %+v", result)
	}
}

func TestPfx2asLookupNotInitializedOnEmptyCache(t *testing.T) {
	d := newTestDeps(t)
	_, err := d.pfx2asLookup(context.Background(), rawJSON(t, pfx2asLookupParams{Prefix: "1.1.1.0/24"}))
	rerr, ok := err.(*rpcerr.Error)
	if !ok || rerr.Code != rpcerr.NotInitialized {
		t.Fatalf("want NotInitialized, got %v", err)
	}
}

func TestPfx2asLookupExactAfterLoad(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	if err := d.Pfx2as.BulkReplace(ctx, d.Store, []repo.Pfx2asEntry{
		{Prefix: "1.1.1.0/24", PrefixLen: 24, OriginASN: 13335},
	}, "https://example.test/pfx2as"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	result, err := d.pfx2asLookup(ctx, rawJSON(t, pfx2asLookupParams{Prefix: "1.1.1.0/24", Mode: "exact"}))
	if err != nil {
		t.Fatalf("pfx2as.lookup: %v", err)
	}
	body, _ := json.Marshal(result)
	if len(body) == 0 {
		t.Fatal("want non-empty result")
	}
}

func TestCountryLookupUnknownASNReturnsNilCountry(t *testing.T) {
	d := newTestDeps(t)
	result, err := d.countryLookup(context.Background(), rawJSON(t, countryLookupParams{ASN: 999999}))
	if err != nil {
		t.Fatalf("country.lookup: %v", err)
	}
	m := result.(map[string]any)
	if m["country"] != nil {
		t.Errorf("want nil country for unknown asn, got %v", m["country"])
	}
}

func TestInspectQueryNameSearch(t *testing.T) {
	d := newTestDeps(t)
	ctx := context.Background()
	if err := d.Asinfo.BulkReplace(ctx, d.Store, []repo.AsinfoRecord{
		{ASN: 13335, Name: "CLOUDFLARENET", Country: "US"},
	}, "https://example.test/asinfo"); err != nil {
		t.Fatalf("bulk replace: %v", err)
	}

	result, err := d.inspectQuery(ctx, rawJSON(t, inspectQueryParams{Query: "cloudflare"}))
	if err != nil {
		t.Fatalf("inspect.query: %v", err)
	}
	report := result.(*lens.InspectReport)
	if len(report.NameMatches) != 1 {
		t.Errorf("want 1 name match, got %d", len(report.NameMatches))
	}
}

func TestAs2relSearchRequiresASN(t *testing.T) {
	d := newTestDeps(t)
	_, err := d.as2relSearch(context.Background(), rawJSON(t, as2relSearchParams{}))
	rerr, ok := err.(*rpcerr.Error)
	if !ok || rerr.Code != rpcerr.InvalidParams {
		t.Fatalf("want InvalidParams, got %v", err)
	}
}

func TestDatabaseStatusListsAllFiveDatasets(t *testing.T) {
	d := newTestDeps(t)
	result, err := d.databaseStatus(context.Background(), nil)
	if err != nil {
		t.Fatalf("database.status: %v", err)
	}
	statuses := result.(map[string]any)["datasets"].([]datasetStatus)
	if len(statuses) != 5 {
		t.Fatalf("want 5 dataset statuses, got %d", len(statuses))
	}
	for _, s := range statuses {
		if s.State != refresh.Absent.String() {
			t.Errorf("dataset %s: want absent on empty store, got %s", s.Dataset, s.State)
		}
	}
}

func TestSearchStartRequiresFilter(t *testing.T) {
	d := newTestDeps(t)
	err := d.searchStart(context.Background(), rawJSON(t, streamParams{Start: "2024-01-01T00:00:00Z", End: "2024-01-02T00:00:00Z"}), func(any) error { return nil })
	rerr, ok := err.(*rpcerr.Error)
	if !ok || rerr.Code != rpcerr.InvalidParams {
		t.Fatalf("want InvalidParams, got %v", err)
	}
}

func TestParseStartRunsPipelineOverNoFiles(t *testing.T) {
	d := newTestDeps(t)
	var kinds []string
	err := d.parseStart(context.Background(), rawJSON(t, streamParams{
		Start: "2024-01-01T00:00:00Z",
		End:   "2024-01-02T00:00:00Z",
	}), func(v any) error {
		kinds = append(kinds, v.(streamPayload).Kind)
		return nil
	})
	if err != nil {
		t.Fatalf("parse.start: %v", err)
	}
	// no files resolved by fakeBroker{}, so only a terminal progress
	// tick (if any) is expected, never a batch.
	for _, k := range kinds {
		if k == "batch" {
			t.Error("want no batches when the broker resolves zero files")
		}
	}
}
