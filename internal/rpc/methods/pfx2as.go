package methods

import (
	"context"
	"encoding/json"
	"net/netip"

	"github.com/bgpkit/monocle/internal/lens"
	"github.com/bgpkit/monocle/internal/refresh"
	"github.com/bgpkit/monocle/internal/rpcerr"
)

type pfx2asLookupParams struct {
	Prefix    string `json:"prefix,omitempty"`
	OriginASN uint32 `json:"origin_asn,omitempty"`
	Mode      string `json:"mode,omitempty"` // exact | covering | longest | covered | by_origin, default "exact"
}

// pfx2asLookup implements spec.md §4.1's four containment shapes plus
// a by-origin reverse lookup, cache-only (spec.md §6.1 "pfx2as.lookup
// — cache-only"): an empty cache fails fast with NotInitialized rather
// than triggering a query-path fetch, the same policy
// internal/lens.RPKILens.checkInitialized applies, generalized here
// since pfx2as has no dedicated lens of its own.
func (d Deps) pfx2asLookup(ctx context.Context, params json.RawMessage) (any, error) {
	var p pfx2asLookupParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}

	if d.Coord != nil {
		state, err := d.Coord.State(ctx, "pfx2as")
		if err != nil {
			return nil, translate(err)
		}
		if state == refresh.Absent {
			return nil, translate(lens.ErrNotInitialized)
		}
	}

	mode := p.Mode
	if mode == "" {
		mode = "exact"
	}

	if mode == "by_origin" {
		if p.OriginASN == 0 {
			return nil, rpcerr.New(rpcerr.InvalidParams, "origin_asn is required for mode=by_origin")
		}
		entries, err := d.Pfx2as.ByOrigin(ctx, p.OriginASN)
		if err != nil {
			return nil, translate(err)
		}
		return map[string]any{"origin_asn": p.OriginASN, "entries": entries}, nil
	}

	prefix, err := netip.ParsePrefix(p.Prefix)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidParams, "prefix is not valid", err)
	}

	var entries any
	switch mode {
	case "exact":
		entries, err = d.Pfx2as.Exact(ctx, prefix)
	case "covering":
		entries, err = d.Pfx2as.Covering(ctx, prefix)
	case "longest":
		entries, err = d.Pfx2as.Longest(ctx, prefix)
	case "covered":
		entries, err = d.Pfx2as.Covered(ctx, prefix)
	default:
		return nil, rpcerr.New(rpcerr.InvalidParams, "unknown mode "+mode)
	}
	if err != nil {
		return nil, translate(err)
	}
	return map[string]any{"prefix": p.Prefix, "mode": mode, "entries": entries}, nil
}
