package methods

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/bgpkit/monocle/internal/rpcerr"
)

type ipLookupParams struct {
	IP string `json:"ip"`
}

type ipLookupEntry struct {
	Prefix    string `json:"prefix"`
	OriginASN uint32 `json:"origin_asn"`
	Name      string `json:"name,omitempty"`
}

type ipLookupResult struct {
	IP      string          `json:"ip"`
	Origins []ipLookupEntry `json:"origins"`
}

// ipLookup resolves the ASN(s) that announce a covering prefix for ip
// (spec.md §4.1 "covering(p)"), the single-address counterpart of
// pfx2as.lookup, then attaches each origin's AS-info name. Grounded on
// the enrich-by-representative-IP pattern in
// wingedpig-iporg/cmd/iporg/build_enrich.go ("Get representative IP
// for lookups" -> "Enrich with MaxMind ASN"), generalized from a
// MaxMind ASN database lookup to this dataset's pfx2as table.
func (d Deps) ipLookup(ctx context.Context, params json.RawMessage) (any, error) {
	var p ipLookupParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(p.IP))
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidParams, "ip is not a valid address", err)
	}
	bits := 32
	if addr.Is6() {
		bits = 128
	}
	prefix := netip.PrefixFrom(addr, bits)

	entries, err := d.Pfx2as.Covering(ctx, prefix)
	if err != nil {
		return nil, translate(err)
	}

	out := ipLookupResult{IP: p.IP}
	for _, e := range entries {
		entry := ipLookupEntry{Prefix: e.Prefix, OriginASN: e.OriginASN}
		if full, err := d.Asinfo.GetFull(ctx, e.OriginASN); err == nil && full != nil {
			entry.Name = full.Name
		}
		out.Origins = append(out.Origins, entry)
	}
	return out, nil
}

// ipPublic reports the caller-visible public IP of this monocled
// process, for diagnosing NAT/proxy setups before a broker fetch.
func (d Deps) ipPublic(ctx context.Context, params json.RawMessage) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.ipify.org", nil)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.OperationFailed, "could not build public IP request", err)
	}
	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.OperationFailed, "could not reach public IP service", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.OperationFailed, "could not read public IP response", err)
	}
	return map[string]string{"ip": strings.TrimSpace(string(body))}, nil
}
