package methods

import (
	"context"
	"encoding/json"
	"net/netip"

	"github.com/bgpkit/monocle/internal/rpcerr"
)

type rpkiValidateParams struct {
	Prefix string `json:"prefix"`
	ASN    uint32 `json:"asn"`
	Date   string `json:"date,omitempty"` // historical query, spec.md §4.4
}

func (d Deps) rpkiValidate(ctx context.Context, params json.RawMessage) (any, error) {
	var p rpkiValidateParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	prefix, err := netip.ParsePrefix(p.Prefix)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidParams, "prefix is not valid", err)
	}
	if p.ASN == 0 {
		return nil, rpcerr.New(rpcerr.InvalidParams, "asn is required")
	}

	if p.Date != "" {
		result, err := d.RPKI.ValidateAt(ctx, p.Date, prefix, p.ASN)
		if err != nil {
			return nil, translate(err)
		}
		return result, nil
	}

	result, err := d.RPKI.Validate(ctx, prefix, p.ASN)
	if err != nil {
		return nil, translate(err)
	}
	return result, nil
}

type rpkiASNParams struct {
	ASN uint32 `json:"asn"`
}

func (d Deps) rpkiRoas(ctx context.Context, params json.RawMessage) (any, error) {
	var p rpkiASNParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.ASN == 0 {
		return nil, rpcerr.New(rpcerr.InvalidParams, "asn is required")
	}
	roas, err := d.RPKI.Roas(ctx, p.ASN)
	if err != nil {
		return nil, translate(err)
	}
	return map[string]any{"asn": p.ASN, "roas": roas}, nil
}

func (d Deps) rpkiAspas(ctx context.Context, params json.RawMessage) (any, error) {
	var p rpkiASNParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	if p.ASN == 0 {
		return nil, rpcerr.New(rpcerr.InvalidParams, "asn (customer ASN) is required")
	}
	aspa, err := d.RPKI.Aspas(ctx, p.ASN)
	if err != nil {
		return nil, translate(err)
	}
	return map[string]any{"asn": p.ASN, "aspa": aspa}, nil
}
