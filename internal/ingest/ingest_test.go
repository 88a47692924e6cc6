package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bgpkit/monocle/internal/repo"
)

func TestFetchAsinfoParsesNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"asn":13335,"name":"CLOUDFLARENET","country":"US","org_id":"CLOUDFLARE","org_name":"Cloudflare, Inc."}
{"asn":15169,"name":"GOOGLE","country":"US","org_id":"GOOGLE","org_name":"Google LLC"}
`))
	}))
	defer srv.Close()

	records, err := FetchAsinfo(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetch asinfo: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("want 2 records, got %d", len(records))
	}
	if records[0].ASN != 13335 || records[0].Name != "CLOUDFLARENET" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
}

func TestFetchAsinfoSkipsBlankLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\n{\"asn\":1,\"name\":\"A\"}\n\n"))
	}))
	defer srv.Close()

	records, err := FetchAsinfo(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetch asinfo: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("want 1 record, got %d", len(records))
	}
}

func TestFetchAS2RelParsesGzippedCAIDAFormat(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write([]byte("# comment line, should be skipped\n1|2|0\n3|4|-1\n\n"))
	gw.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	edges, err := FetchAS2Rel(context.Background(), srv.Client(), srv.URL+"/as-rel.txt.gz")
	if err != nil {
		t.Fatalf("fetch as2rel: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("want 2 edges, got %d", len(edges))
	}
	if edges[0] != (repo.Edge{ASN1: 1, ASN2: 2, Rel: repo.RelPeer}) {
		t.Errorf("unexpected first edge: %+v", edges[0])
	}
	if edges[1] != (repo.Edge{ASN1: 3, ASN2: 4, Rel: repo.RelCustomer}) {
		t.Errorf("unexpected second edge: %+v", edges[1])
	}
}

func TestFetchPfx2asParsesNDJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prefix":"1.1.1.0/24","asn":13335}
{"prefix":"8.8.8.0/24","asn":15169}
`))
	}))
	defer srv.Close()

	entries, err := FetchPfx2as(context.Background(), srv.Client(), srv.URL+"/pfx2as.json")
	if err != nil {
		t.Fatalf("fetch pfx2as: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("want 2 entries, got %d", len(entries))
	}
	if entries[0].PrefixLen != 24 || entries[0].OriginASN != 13335 {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
}

func TestFetchRPKIParsesROAsAndASPAs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"roas": [{"asn":"AS13335","prefix":"1.1.1.0/24","maxLength":24,"ta":"arin"}],
			"aspas": [{"customer_asn":"AS13335","providers":["AS174","AS3356"]}]
		}`))
	}))
	defer srv.Close()

	roas, aspas, err := FetchRPKI(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetch rpki: %v", err)
	}
	if len(roas) != 1 || roas[0].OriginASN != 13335 || roas[0].MaxLength != 24 {
		t.Fatalf("unexpected roas: %+v", roas)
	}
	if len(aspas) != 1 || aspas[0].CustomerASN != 13335 || len(aspas[0].ProviderASN) != 2 {
		t.Fatalf("unexpected aspas: %+v", aspas)
	}
}

func TestFetchROAsSkipsUnparseableASN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"roas":[{"asn":"not-an-asn","prefix":"1.1.1.0/24","maxLength":24,"ta":"arin"}]}`))
	}))
	defer srv.Close()

	roas, err := FetchROAs(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetch roas: %v", err)
	}
	if len(roas) != 0 {
		t.Fatalf("want 0 roas for unparseable asn, got %d", len(roas))
	}
}

func TestArchiveFetcherBuildsDateScopedURL(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"roas":[{"asn":"AS13335","prefix":"1.1.1.0/24","maxLength":24,"ta":"arin"}]}`))
	}))
	defer srv.Close()

	af := ArchiveFetcher{Client: srv.Client(), BaseURL: srv.URL}
	roas, err := af.FetchROAsAt(context.Background(), "2024-01-01")
	if err != nil {
		t.Fatalf("fetch historical roas: %v", err)
	}
	if gotPath != "/2024-01-01/roas.json" {
		t.Errorf("want path /2024-01-01/roas.json, got %s", gotPath)
	}
	if len(roas) != 1 {
		t.Fatalf("want 1 roa, got %d", len(roas))
	}
}

func TestGetReturnsErrorOnNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FetchAsinfo(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("want error on non-200 response")
	}
}
