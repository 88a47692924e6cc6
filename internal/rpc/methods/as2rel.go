package methods

import (
	"context"
	"encoding/json"

	"github.com/bgpkit/monocle/internal/rpcerr"
)

type as2relSearchParams struct {
	ASN uint32 `json:"asn"`
}

func (d Deps) as2relSearch(ctx context.Context, params json.RawMessage) (any, error) {
	var p as2relSearchParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.ASN == 0 {
		return nil, rpcerr.New(rpcerr.InvalidParams, "asn is required")
	}
	edges, err := d.AS2Rel.Neighbors(ctx, p.ASN)
	if err != nil {
		return nil, translate(err)
	}
	return map[string]any{"asn": p.ASN, "neighbors": edges}, nil
}

type as2relRelationshipParams struct {
	ASN1 uint32 `json:"asn1"`
	ASN2 uint32 `json:"asn2"`
}

func (d Deps) as2relRelationship(ctx context.Context, params json.RawMessage) (any, error) {
	var p as2relRelationshipParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.ASN1 == 0 || p.ASN2 == 0 {
		return nil, rpcerr.New(rpcerr.InvalidParams, "asn1 and asn2 are required")
	}
	edge, err := d.AS2Rel.Pair(ctx, p.ASN1, p.ASN2)
	if err != nil {
		return nil, translate(err)
	}
	return map[string]any{"asn1": p.ASN1, "asn2": p.ASN2, "relationship": edge}, nil
}

type as2relUpdateParams struct {
	Force bool `json:"force,omitempty"`
}

func (d Deps) as2relUpdate(ctx context.Context, params json.RawMessage) (any, error) {
	var p as2relUpdateParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if err := d.Coord.Refresh(ctx, "as2rel", p.Force); err != nil {
		return nil, translate(err)
	}
	return map[string]bool{"ok": true}, nil
}
