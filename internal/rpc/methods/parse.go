package methods

import (
	"context"
	"encoding/json"
	"net/netip"
	"time"

	"github.com/bgpkit/monocle/internal/mrtpipe"
	"github.com/bgpkit/monocle/internal/rpcerr"
)

// streamParams is the params shape shared by parse.start and
// search.start (spec.md §4.5's broker query + filter dimensions,
// §6.1's streaming methods).
type streamParams struct {
	Start      string   `json:"start"`
	End        string   `json:"end"`
	Collectors []string `json:"collectors,omitempty"`
	Project    string   `json:"project,omitempty"`
	DumpType   string   `json:"dump_type,omitempty"` // updates | rib | rib-updates

	Concurrency int `json:"concurrency,omitempty"`
	BatchSize   int `json:"batch_size,omitempty"`

	Filter struct {
		OriginASN    []uint32 `json:"origin_asn,omitempty"`
		Prefix       string   `json:"prefix,omitempty"`
		IncludeSub   bool     `json:"include_sub,omitempty"`
		IncludeSuper bool     `json:"include_super,omitempty"`
		PeerIP       []string `json:"peer_ip,omitempty"`
		PeerASN      []uint32 `json:"peer_asn,omitempty"`
		Types        []string `json:"types,omitempty"` // announce | withdraw
		ASPathRegex  string   `json:"as_path_regex,omitempty"`
		Since        string   `json:"since,omitempty"`
		Until        string   `json:"until,omitempty"`
	} `json:"filter,omitempty"`
}

func (p streamParams) toOptions() (mrtpipe.Options, error) {
	var opts mrtpipe.Options

	start, err := parseFlexTime(p.Start)
	if err != nil {
		return opts, rpcerr.Wrap(rpcerr.InvalidParams, "start is not a valid time", err)
	}
	end, err := parseFlexTime(p.End)
	if err != nil {
		return opts, rpcerr.Wrap(rpcerr.InvalidParams, "end is not a valid time", err)
	}

	dumpType := mrtpipe.DumpType(p.DumpType)
	if dumpType == "" {
		dumpType = mrtpipe.DumpUpdates
	}

	opts.Query = mrtpipe.BrokerQuery{
		Start:      start,
		End:        end,
		Collectors: p.Collectors,
		Project:    p.Project,
		DumpType:   dumpType,
	}
	opts.Concurrency = p.Concurrency
	opts.BatchSize = p.BatchSize

	f := mrtpipe.Filter{
		OriginASN:    p.Filter.OriginASN,
		IncludeSub:   p.Filter.IncludeSub,
		IncludeSuper: p.Filter.IncludeSuper,
		PeerASN:      p.Filter.PeerASN,
		ASPathRegex:  p.Filter.ASPathRegex,
	}
	if p.Filter.Prefix != "" {
		prefix, err := netip.ParsePrefix(p.Filter.Prefix)
		if err != nil {
			return opts, rpcerr.Wrap(rpcerr.InvalidParams, "filter.prefix is not valid", err)
		}
		f.Prefix = prefix
		f.HasPrefix = true
	}
	for _, ip := range p.Filter.PeerIP {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return opts, rpcerr.Wrap(rpcerr.InvalidParams, "filter.peer_ip entry is not valid", err)
		}
		f.PeerIP = append(f.PeerIP, addr)
	}
	for _, t := range p.Filter.Types {
		f.Types = append(f.Types, mrtpipe.ElementType(t))
	}
	if p.Filter.Since != "" {
		f.Since, err = parseFlexTime(p.Filter.Since)
		if err != nil {
			return opts, rpcerr.Wrap(rpcerr.InvalidParams, "filter.since is not a valid time", err)
		}
	}
	if p.Filter.Until != "" {
		f.Until, err = parseFlexTime(p.Filter.Until)
		if err != nil {
			return opts, rpcerr.Wrap(rpcerr.InvalidParams, "filter.until is not a valid time", err)
		}
	}
	opts.Filter = f

	return opts, nil
}

func (p streamParams) hasFilter() bool {
	f := p.Filter
	return len(f.OriginASN) > 0 || f.Prefix != "" || len(f.PeerIP) > 0 ||
		len(f.PeerASN) > 0 || len(f.Types) > 0 || f.ASPathRegex != ""
}

func parseFlexTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// streamPayload tags each emitted envelope so a client can tell a
// progress tick from a batch of decoded elements without a second
// envelope field (spec.md §4.5 "Progress shape" keeps progress and
// batch payloads as sibling fields, not new stage strings — tagging
// the data payload's kind is this rewrite's equivalent for the
// simplified data/result/error envelope set documented in internal/rpc's
// ledger entry, where cancellation is a result payload, not a type).
type streamPayload struct {
	Kind     string            `json:"kind"` // "progress" | "batch"
	Progress *mrtpipe.Progress `json:"progress,omitempty"`
	Batch    *mrtpipe.Batch    `json:"batch,omitempty"`
}

func (d Deps) runPipeline(ctx context.Context, params json.RawMessage, emit func(any) error, requireFilter bool) error {
	var p streamParams
	if err := bindParams(params, &p); err != nil {
		return err
	}
	if requireFilter && !p.hasFilter() {
		return rpcerr.New(rpcerr.InvalidParams, "search.start requires at least one filter dimension")
	}

	opts, err := p.toOptions()
	if err != nil {
		return err
	}

	token := &mrtpipe.Token{}
	go func() {
		<-ctx.Done()
		token.Cancel()
	}()

	onBatch := func(b mrtpipe.Batch) error {
		return emit(streamPayload{Kind: "batch", Batch: &b})
	}
	onProgress := func(pr mrtpipe.Progress) {
		_ = emit(streamPayload{Kind: "progress", Progress: &pr})
	}

	if err := d.Pipeline.Run(ctx, opts, token, onBatch, onProgress); err != nil {
		return rpcerr.Wrap(rpcerr.OperationFailed, "mrt pipeline run failed", err)
	}
	return nil
}

// parseStart implements spec.md §6.1's "parse.start": decode and
// filter the MRT files a broker query resolves to, streaming batches
// and progress until done or cancelled.
func (d Deps) parseStart(ctx context.Context, params json.RawMessage, emit func(any) error) error {
	return d.runPipeline(ctx, params, emit, false)
}

// searchStart is parse.start's filtered counterpart: spec.md's
// broker-query-plus-filter pipeline, but a caller that forgot every
// filter dimension almost certainly meant parse.start instead of
// streaming an entire unfiltered time range back to itself.
func (d Deps) searchStart(ctx context.Context, params json.RawMessage, emit func(any) error) error {
	return d.runPipeline(ctx, params, emit, true)
}
