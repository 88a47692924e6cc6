package methods

import (
	"context"
	"encoding/json"

	"github.com/bgpkit/monocle/internal/refresh"
	"github.com/bgpkit/monocle/internal/repo"
	"github.com/bgpkit/monocle/internal/rpcerr"
)

type datasetStatus struct {
	Dataset     string  `json:"dataset"`
	State       string  `json:"state"`
	SourceURL   string  `json:"source_url,omitempty"`
	LoadedAt    *int64  `json:"loaded_at,omitempty"`
	RecordCount int     `json:"record_count"`
}

// databaseStatus reports freshness for every underlying dataset table
// in one call (spec.md's supplemented "database.status", DESIGN.md's
// grounding notes): the five meta rows spec.md §6.2 lists
// (asinfo_meta, as2rel_meta, rpki_meta's two datasets roas/aspas,
// pfx2as_meta), each paired with the coordinator's freshness state for
// the dataset id that gates it.
func (d Deps) databaseStatus(ctx context.Context, params json.RawMessage) (any, error) {
	type source struct {
		dataset   string
		stateID   string
		metaFn    func(context.Context) (repo.Meta, bool, error)
	}
	sources := []source{
		{"asinfo", "asinfo", d.Asinfo.Meta},
		{"as2rel", "as2rel", d.AS2Rel.Meta},
		{"roas", "rpki", d.ROAs.Meta},
		{"aspas", "rpki", d.ASPAs.Meta},
		{"pfx2as", "pfx2as", d.Pfx2as.Meta},
	}

	statuses := make([]datasetStatus, 0, len(sources))
	for _, s := range sources {
		meta, ok, err := s.metaFn(ctx)
		if err != nil {
			return nil, translate(err)
		}

		state := refresh.Absent
		if d.Coord != nil {
			state, err = d.Coord.State(ctx, s.stateID)
			if err != nil {
				return nil, translate(err)
			}
		}

		ds := datasetStatus{Dataset: s.dataset, State: state.String()}
		if ok {
			ds.SourceURL = meta.SourceURL
			ds.RecordCount = meta.RecordCount
			loadedAt := meta.LoadedAt.Unix()
			ds.LoadedAt = &loadedAt
		}
		statuses = append(statuses, ds)
	}

	return map[string]any{"datasets": statuses}, nil
}

type databaseRefreshParams struct {
	Dataset string `json:"dataset"`
	Force   bool   `json:"force,omitempty"`
}

// databaseRefresh triggers a coordinator refresh for one of the four
// registered dataset ids ("asinfo", "as2rel", "rpki", "pfx2as").
func (d Deps) databaseRefresh(ctx context.Context, params json.RawMessage) (any, error) {
	var p databaseRefreshParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.Dataset == "" {
		return nil, rpcerr.New(rpcerr.InvalidParams, "dataset is required")
	}
	if err := d.Coord.Refresh(ctx, p.Dataset, p.Force); err != nil {
		return nil, translate(err)
	}
	return map[string]bool{"ok": true}, nil
}
