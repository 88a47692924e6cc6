// Package ingest fetches and parses the four upstream dataset feeds
// spec.md §6.3 names (AS-info, AS relationships, RPKI, pfx2as) into
// the repository row types internal/repo's BulkReplace methods expect.
// cmd/monocled wires one fetcher per dataset into the refresh
// coordinator's RefreshFn. Every fetch here is the refresh
// coordinator's job, never the query path's — the same "fetch only on
// Refresh, never on a cache read" boundary internal/lens.RPKILens
// enforces for its cache-only methods.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bgpkit/monocle/internal/mrtpipe"
	"github.com/bgpkit/monocle/internal/repo"
)

// ArchiveFetcher implements lens.HistoricalFetcher against a
// bgpkit-rpki-archive-style endpoint that serves one ROA snapshot per
// day at baseURL/<date>/roas.json, reusing FetchROAs' snapshot parsing
// against each day's URL.
type ArchiveFetcher struct {
	Client  *http.Client
	BaseURL string
}

func (a ArchiveFetcher) FetchROAsAt(ctx context.Context, date string) ([]repo.ROA, error) {
	client := a.Client
	if client == nil {
		client = http.DefaultClient
	}
	url := strings.TrimSuffix(a.BaseURL, "/") + "/" + date + "/roas.json"
	roas, err := FetchROAs(ctx, client, url)
	if err != nil {
		return nil, fmt.Errorf("ingest: archive snapshot for %s: %w", date, err)
	}
	return roas, nil
}

// get fetches url and returns its body, erroring on a non-2xx status
// the way mrtpipe.fetchDecoded does for MRT files.
func get(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("ingest: fetch %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// asinfoLine is one row of the upstream newline-delimited JSON feed
// (spec.md §6.3 "AS-info: newline-delimited JSON").
type asinfoLine struct {
	ASN        uint32          `json:"asn"`
	Name       string          `json:"name"`
	Country    string          `json:"country"`
	OrgID      string          `json:"org_id"`
	OrgName    string          `json:"org_name"`
	PeeringDB  json.RawMessage `json:"peeringdb,omitempty"`
	Hegemony   *float64        `json:"hegemony,omitempty"`
	Population *int64          `json:"population,omitempty"`
}

// FetchAsinfo parses the AS-info newline-delimited JSON feed at url.
func FetchAsinfo(ctx context.Context, client *http.Client, url string) ([]repo.AsinfoRecord, error) {
	body, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var records []repo.AsinfoRecord
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var l asinfoLine
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			return nil, fmt.Errorf("ingest: asinfo: decode line: %w", err)
		}
		records = append(records, repo.AsinfoRecord{
			ASN: l.ASN, Name: l.Name, Country: l.Country, OrgID: l.OrgID, OrgName: l.OrgName,
			PeeringDB: l.PeeringDB, Hegemony: l.Hegemony, Population: l.Population,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: asinfo: %w", err)
	}
	return records, nil
}

// FetchAS2Rel parses a CAIDA-style AS-relationship archive
// (`asn1|asn2|rel` lines, `#`-prefixed comments skipped) at url into
// Edge rows oriented asn1 -> asn2. The body is decompressed according
// to url's extension by mrtpipe.Decompress.
func FetchAS2Rel(ctx context.Context, client *http.Client, url string) ([]repo.Edge, error) {
	body, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	rd, closeRd, err := mrtpipe.Decompress(body, url)
	if err != nil {
		return nil, fmt.Errorf("ingest: as2rel: %w", err)
	}
	defer closeRd()

	var edges []repo.Edge
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			continue
		}
		asn1, err1 := strconv.ParseUint(fields[0], 10, 32)
		asn2, err2 := strconv.ParseUint(fields[1], 10, 32)
		rel, err3 := strconv.Atoi(fields[2])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		edges = append(edges, repo.Edge{
			ASN1: uint32(asn1), ASN2: uint32(asn2), Rel: repo.Relationship(rel),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: as2rel: %w", err)
	}
	return edges, nil
}

// pfx2asLine is one row of the pfx2as archive: a prefix and the ASN
// observed originating it (MOAS prefixes repeat across several lines).
type pfx2asLine struct {
	Prefix string `json:"prefix"`
	ASN    uint32 `json:"asn"`
}

// FetchPfx2as parses a newline-delimited JSON prefix-to-ASN archive at
// url, decompressed according to url's extension by mrtpipe.Decompress.
func FetchPfx2as(ctx context.Context, client *http.Client, url string) ([]repo.Pfx2asEntry, error) {
	body, err := get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	rd, closeRd, err := mrtpipe.Decompress(body, url)
	if err != nil {
		return nil, fmt.Errorf("ingest: pfx2as: %w", err)
	}
	defer closeRd()

	var entries []repo.Pfx2asEntry
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var l pfx2asLine
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			return nil, fmt.Errorf("ingest: pfx2as: decode line: %w", err)
		}
		prefixLen := 0
		if i := strings.IndexByte(l.Prefix, '/'); i >= 0 {
			prefixLen, _ = strconv.Atoi(l.Prefix[i+1:])
		}
		entries = append(entries, repo.Pfx2asEntry{Prefix: l.Prefix, PrefixLen: prefixLen, OriginASN: l.ASN})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: pfx2as: %w", err)
	}
	return entries, nil
}

// rpkiSnapshot is the shape of an RPKI validator's current-state JSON
// export: a "roas" array every major validator implementation uses,
// plus an "aspas" array the newer RFC 9582 validators add alongside it.
// Both datasets ride the same snapshot document, so one fetch serves
// both the ROA and ASPA repositories.
type rpkiSnapshot struct {
	ROAs []struct {
		ASN       string `json:"asn"`
		Prefix    string `json:"prefix"`
		MaxLength int    `json:"maxLength"`
		TA        string `json:"ta"`
	} `json:"roas"`
	ASPAs []struct {
		Customer  string   `json:"customer_asn"`
		Providers []string `json:"providers"`
	} `json:"aspas"`
}

// FetchRPKI parses both halves of an RPKI validator's current snapshot
// at url in a single request, for callers (cmd/monocled's refresh
// wiring) that need to bulk-replace both repositories from one fetch.
func FetchRPKI(ctx context.Context, client *http.Client, url string) ([]repo.ROA, []repo.ASPA, error) {
	snap, err := fetchRPKISnapshot(ctx, client, url)
	if err != nil {
		return nil, nil, err
	}
	return roasFromSnapshot(snap), aspasFromSnapshot(snap), nil
}

func fetchRPKISnapshot(ctx context.Context, client *http.Client, url string) (rpkiSnapshot, error) {
	body, err := get(ctx, client, url)
	if err != nil {
		return rpkiSnapshot{}, err
	}
	defer body.Close()

	var snap rpkiSnapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return rpkiSnapshot{}, fmt.Errorf("ingest: rpki: decode snapshot: %w", err)
	}
	return snap, nil
}

func parseASN(s string) (uint32, error) {
	asn, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(s), "AS"), 10, 32)
	return uint32(asn), err
}

// FetchROAs parses the ROA half of an RPKI validator's current
// snapshot at url.
func FetchROAs(ctx context.Context, client *http.Client, url string) ([]repo.ROA, error) {
	snap, err := fetchRPKISnapshot(ctx, client, url)
	if err != nil {
		return nil, err
	}
	return roasFromSnapshot(snap), nil
}

// FetchASPAs parses the ASPA half of an RPKI validator's current
// snapshot at url.
func FetchASPAs(ctx context.Context, client *http.Client, url string) ([]repo.ASPA, error) {
	snap, err := fetchRPKISnapshot(ctx, client, url)
	if err != nil {
		return nil, err
	}
	return aspasFromSnapshot(snap), nil
}

func roasFromSnapshot(snap rpkiSnapshot) []repo.ROA {
	roas := make([]repo.ROA, 0, len(snap.ROAs))
	for _, r := range snap.ROAs {
		asn, err := parseASN(r.ASN)
		if err != nil {
			continue
		}
		prefixLen := 0
		if i := strings.IndexByte(r.Prefix, '/'); i >= 0 {
			prefixLen, _ = strconv.Atoi(r.Prefix[i+1:])
		}
		roas = append(roas, repo.ROA{
			Prefix: r.Prefix, PrefixLen: prefixLen, MaxLength: r.MaxLength,
			OriginASN: asn, TrustAnchor: r.TA,
		})
	}
	return roas
}

func aspasFromSnapshot(snap rpkiSnapshot) []repo.ASPA {
	aspas := make([]repo.ASPA, 0, len(snap.ASPAs))
	for _, a := range snap.ASPAs {
		customer, err := parseASN(a.Customer)
		if err != nil {
			continue
		}
		providers := make([]uint32, 0, len(a.Providers))
		for _, p := range a.Providers {
			asn, err := parseASN(p)
			if err != nil {
				continue
			}
			providers = append(providers, asn)
		}
		aspas = append(aspas, repo.ASPA{CustomerASN: customer, ProviderASN: providers})
	}
	return aspas
}
