package methods

import (
	"context"
	"encoding/json"

	"github.com/bgpkit/monocle/internal/rpcerr"
)

type countryLookupParams struct {
	ASN uint32 `json:"asn"`
}

// countryLookup answers the registered country of an ASN from the
// cached AS-info dataset (spec.md §3.1's asinfo_core.country column),
// not a per-IP MaxMind geolocation — monocle's containment store never
// ingests a standalone IP geolocation database, only the ASN registry
// data the broker/AS-info feed already carries.
func (d Deps) countryLookup(ctx context.Context, params json.RawMessage) (any, error) {
	var p countryLookupParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.ASN == 0 {
		return nil, rpcerr.New(rpcerr.InvalidParams, "asn is required")
	}

	full, err := d.Asinfo.GetFull(ctx, p.ASN)
	if err != nil {
		return nil, translate(err)
	}
	if full == nil {
		return map[string]any{"asn": p.ASN, "country": nil}, nil
	}
	return map[string]any{"asn": p.ASN, "country": full.Country}, nil
}
