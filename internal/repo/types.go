// Package repo implements spec.md §4.2's dataset repositories: typed
// CRUD wrappers over internal/store, one per dataset. Repositories know
// nothing about validation verdicts or formatting — that belongs to
// internal/lens.
package repo

import (
	"encoding/json"
	"time"
)

// ROA is a Route Origin Authorization row (spec.md §3.1).
type ROA struct {
	Prefix      string
	PrefixLen   int
	MaxLength   int
	OriginASN   uint32
	TrustAnchor string
}

// ASPA is an Autonomous System Provider Authorization record: one
// customer ASN and its ordered set of provider ASNs.
type ASPA struct {
	CustomerASN uint32
	ProviderASN []uint32
}

// Pfx2asEntry is one (prefix, origin) row; MOAS prefixes have multiple
// entries sharing the same prefix.
type Pfx2asEntry struct {
	Prefix    string
	PrefixLen int
	OriginASN uint32
}

// Relationship describes business relatedness between two ASNs from
// asn1's point of view: Rel is -1 (asn1 is customer of asn2), 0 (peer),
// or +1 (asn1 is provider of asn2).
type Relationship int

const (
	RelCustomer Relationship = -1
	RelPeer     Relationship = 0
	RelProvider Relationship = 1
)

// Edge is one AS2Rel row, oriented asn1 -> asn2.
type Edge struct {
	ASN1        uint32
	ASN2        uint32
	PeersCount  int64
	PathsCount  int64
	Rel         Relationship
}

// ConnectivitySummary is the AS2Rel repository's aggregate view of one
// ASN's neighbors, partitioned by relationship (spec.md §4.2).
type ConnectivitySummary struct {
	ASN uint32

	UpstreamCount   int
	DownstreamCount int
	PeerCount       int
	TotalNeighbors  int

	UpstreamPct   float64
	DownstreamPct float64
	PeerPct       float64

	TopUpstreams   []Edge
	TopDownstreams []Edge
	TopPeers       []Edge
}

// AsinfoCore is the mandatory portion of an AS-info record.
type AsinfoCore struct {
	ASN     uint32
	Name    string
	Country string
	OrgID   string
	OrgName string
}

// AsinfoFull is AsinfoCore joined with every optional provider table
// that has data for the ASN.
type AsinfoFull struct {
	AsinfoCore

	PeeringDB  json.RawMessage
	Hegemony   *float64
	Population *int64
}

// AsinfoRecord is one ingested AS-info row, as parsed from the
// upstream newline-delimited JSON feed (spec.md §6.3). Optional fields
// are nil when the upstream record doesn't carry them.
type AsinfoRecord struct {
	ASN        uint32
	Name       string
	Country    string
	OrgID      string
	OrgName    string
	PeeringDB  json.RawMessage
	Hegemony   *float64
	Population *int64
}

// Meta is a dataset's singleton freshness row (spec.md §3.1 "Dataset
// metadata").
type Meta struct {
	Dataset     string
	SourceURL   string
	LoadedAt    time.Time
	RecordCount int
}
