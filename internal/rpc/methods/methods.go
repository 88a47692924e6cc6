// Package methods wires the concrete domain components — repositories,
// lenses, the refresh coordinator, and the MRT pipeline — into an
// rpc.Registry as the thin, one-handler-per-name adapters spec.md
// §6.1 names. Structurally this is stages/repo.go's NewStage map
// narrowed to RPC methods: Register builds the table once and the
// connection loop in internal/rpc does the dispatching.
package methods

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgpkit/monocle/internal/lens"
	"github.com/bgpkit/monocle/internal/mrtpipe"
	"github.com/bgpkit/monocle/internal/refresh"
	"github.com/bgpkit/monocle/internal/repo"
	"github.com/bgpkit/monocle/internal/rpc"
	"github.com/bgpkit/monocle/internal/rpcerr"
	"github.com/bgpkit/monocle/internal/store"
)

// Deps bundles every component a method handler needs. cmd/monocled
// builds one of these after opening the store and constructs the
// repositories, lenses, coordinator, and pipeline above it.
type Deps struct {
	Logger zerolog.Logger

	Version   string
	StartedAt time.Time

	Store      *store.Store
	Asinfo     *repo.AsinfoRepo
	AS2Rel     *repo.AS2RelRepo
	Pfx2as     *repo.Pfx2asRepo
	ROAs       *repo.ROARepo
	ASPAs      *repo.ASPARepo
	RPKI       *lens.RPKILens
	Inspect    *lens.InspectLens
	Coord      *refresh.Coordinator
	Pipeline   *mrtpipe.Pipeline
	HTTPClient *http.Client
}

// Register binds every method name from spec.md §6.1 to its handler.
func Register(r *rpc.Registry, d Deps) {
	if d.HTTPClient == nil {
		d.HTTPClient = http.DefaultClient
	}

	r.RegisterUnary("system.info", d.systemInfo)
	r.RegisterUnary("system.methods", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]any{"methods": r.Names()}, nil
	})

	r.RegisterUnary("time.parse", d.timeParse)

	r.RegisterUnary("ip.lookup", d.ipLookup)
	r.RegisterUnary("ip.public", d.ipPublic)

	r.RegisterUnary("country.lookup", d.countryLookup)

	r.RegisterUnary("rpki.validate", d.rpkiValidate)
	r.RegisterUnary("rpki.roas", d.rpkiRoas)
	r.RegisterUnary("rpki.aspas", d.rpkiAspas)

	r.RegisterUnary("inspect.query", d.inspectQuery)
	r.RegisterUnary("inspect.refresh", d.inspectRefresh)

	r.RegisterUnary("as2rel.search", d.as2relSearch)
	r.RegisterUnary("as2rel.relationship", d.as2relRelationship)
	r.RegisterUnary("as2rel.update", d.as2relUpdate)

	r.RegisterUnary("pfx2as.lookup", d.pfx2asLookup)

	r.RegisterStream("parse.start", d.parseStart)
	r.RegisterUnary("parse.cancel", d.cancelOp)
	r.RegisterStream("search.start", d.searchStart)
	r.RegisterUnary("search.cancel", d.cancelOp)

	r.RegisterUnary("database.status", d.databaseStatus)
	r.RegisterUnary("database.refresh", d.databaseRefresh)
}

// cancelOp implements both parse.cancel and search.cancel: spec.md
// §4.6 "A dedicated method cancel ... accepts {op_id} and signals the
// token. Unknown op_id yields InvalidParams."
func (d Deps) cancelOp(ctx context.Context, params json.RawMessage) (any, error) {
	var req struct {
		OpID string `json:"op_id"`
	}
	if err := json.Unmarshal(params, &req); err != nil || req.OpID == "" {
		return nil, rpcerr.New(rpcerr.InvalidParams, "op_id is required")
	}
	if !rpc.CancelOperation(ctx, req.OpID) {
		return nil, rpcerr.New(rpcerr.InvalidParams, "unknown op_id")
	}
	return map[string]bool{"cancelled": true}, nil
}

// bindParams decodes params into v, translating a decode failure into
// the protocol's InvalidParams code rather than letting it surface as
// an opaque InternalError.
func bindParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return rpcerr.Wrap(rpcerr.InvalidParams, "could not decode params", err)
	}
	return nil
}

// translate maps sentinel domain errors onto their protocol codes;
// anything else is returned as-is and becomes InternalError at
// rpcerr.As (internal/rpc's boundary), which is the right default for
// errors a handler didn't anticipate.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, lens.ErrNotInitialized) {
		return rpcerr.Wrap(rpcerr.NotInitialized, "dataset has not been loaded yet", err)
	}
	if errors.Is(err, context.Canceled) {
		return rpcerr.Wrap(rpcerr.OperationCancelled, "operation was cancelled", err)
	}
	return err
}
