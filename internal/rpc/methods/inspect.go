package methods

import (
	"context"
	"encoding/json"

	"github.com/bgpkit/monocle/internal/lens"
	"github.com/bgpkit/monocle/internal/rpcerr"
)

type inspectQueryParams struct {
	Query        string   `json:"query"`
	Sections     []string `json:"sections,omitempty"`
	MaxROAs      int      `json:"max_roas,omitempty"`
	MaxPrefixes  int      `json:"max_prefixes,omitempty"`
	MaxNeighbors int      `json:"max_neighbors,omitempty"`
}

func (d Deps) inspectQuery(ctx context.Context, params json.RawMessage) (any, error) {
	var p inspectQueryParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, rpcerr.New(rpcerr.InvalidParams, "query is required")
	}

	opts := lens.InspectOptions{
		MaxROAs:      p.MaxROAs,
		MaxPrefixes:  p.MaxPrefixes,
		MaxNeighbors: p.MaxNeighbors,
	}
	if len(p.Sections) > 0 {
		opts.Sections = make([]lens.Section, 0, len(p.Sections))
		for _, s := range p.Sections {
			opts.Sections = append(opts.Sections, lens.Section(s))
		}
	}

	report, err := d.Inspect.Query(ctx, p.Query, opts)
	if err != nil {
		return nil, translate(err)
	}
	return report, nil
}

type inspectRefreshParams struct {
	Force bool `json:"force,omitempty"`
}

// inspectRefresh forces the datasets the inspect lens draws on
// (asinfo, as2rel) through the refresh coordinator, so a caller that
// just noticed stale inspect output doesn't have to know the lens's
// two backing dataset ids.
func (d Deps) inspectRefresh(ctx context.Context, params json.RawMessage) (any, error) {
	var p inspectRefreshParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	for _, dataset := range []string{"asinfo", "as2rel"} {
		if err := d.Coord.Refresh(ctx, dataset, p.Force); err != nil {
			return nil, translate(err)
		}
	}
	return map[string]bool{"ok": true}, nil
}
