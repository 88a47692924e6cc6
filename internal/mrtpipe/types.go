// Package mrtpipe implements the streaming MRT pipeline of spec.md
// §4.5: broker query, parallel download and decode, prefix/AS-path
// filtering, batching, and progress reporting. Decoding itself is
// delegated to bgpfix/mrt, an external MRT parser; this package only
// discovers files, fans workers out over them, and shapes the output.
package mrtpipe

import (
	"net/netip"
	"time"
)

// ElementType is the kind of BGP reachability change an element
// represents, mirroring MRT's own announce/withdraw distinction.
type ElementType string

const (
	ElementAnnounce ElementType = "announce"
	ElementWithdraw ElementType = "withdraw"
)

// BGPElement is one decoded routing update (spec.md §3.1 "MRT batch").
type BGPElement struct {
	Collector string      `json:"collector"`
	Timestamp time.Time   `json:"timestamp"`
	Type      ElementType `json:"type"`
	Prefix    netip.Prefix `json:"prefix"`
	OriginASN uint32      `json:"origin_asn"`
	ASPath    []uint32    `json:"as_path"`
	PeerIP    netip.Addr  `json:"peer_ip,omitzero"`
	PeerASN   uint32      `json:"peer_asn,omitempty"`
	NextHop   netip.Addr  `json:"next_hop,omitzero"`
}

// DumpType selects which MRT record family a broker query targets.
type DumpType string

const (
	DumpUpdates     DumpType = "updates"
	DumpRIB         DumpType = "rib"
	DumpRIBUpdates  DumpType = "rib-updates"
)

// FileRef is one file the broker resolved for a query (spec.md §4.5 stage 1).
type FileRef struct {
	URL       string
	Collector string
	Project   string
	Size      int64
}

// BrokerQuery is the time-range/collector/project/dump-type input to
// the broker (spec.md §6.3).
type BrokerQuery struct {
	Start      time.Time
	End        time.Time
	Collectors []string
	Project    string
	DumpType   DumpType
}

// Filter is the per-element predicate composed of every dimension
// spec.md §4.5 stage 3 names. Zero-valued fields are unconstrained.
type Filter struct {
	OriginASN    []uint32
	Prefix       netip.Prefix
	HasPrefix    bool
	IncludeSub   bool // accept elements covered by Prefix
	IncludeSuper bool // accept elements covering Prefix
	PeerIP       []netip.Addr
	PeerASN      []uint32
	Types        []ElementType
	ASPathRegex  string
	Since        time.Time
	Until        time.Time
}

// Stage is one of the shared progress stages from spec.md §4.5/§6.1.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageRunning    Stage = "running"
	StageDownloading Stage = "downloading"
	StageProcessing Stage = "processing"
	StageFinalizing Stage = "finalizing"
	StageDone       Stage = "done"
)

// Progress is emitted periodically during a run (spec.md §4.5 "Progress shape").
type Progress struct {
	Stage           Stage   `json:"stage"`
	FilesCompleted  int     `json:"files_completed"`
	FilesFailed     int     `json:"files_failed"`
	TotalFiles      int     `json:"total_files"`
	ElementsEmitted int64   `json:"elements_emitted"`
	RatePerSec      float64 `json:"rate_per_sec"`
	ETASecs         float64 `json:"eta_secs"`
}

// Batch is one ordered group of elements from a single file (spec.md
// §4.5 stage 4: "preserving per-file order").
type Batch struct {
	Collector string
	FileIndex int
	Elements  []BGPElement
}
