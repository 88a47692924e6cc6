package methods

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/itlightning/dateparse"

	"github.com/bgpkit/monocle/internal/rpcerr"
)

type timeParseParams struct {
	Value string `json:"value"`
}

type timeParseResult struct {
	Unix    int64  `json:"unix"`
	RFC3339 string `json:"rfc3339"`
}

// timeParse accepts the loose set of time formats spec.md §6.3's MRT
// broker queries and the RPKI lens's historical date parameter are
// built on: a Unix timestamp, a signed duration relative to now (e.g.
// "-1h", "-24h"), or any of the layouts itlightning/dateparse
// recognizes (RFC3339, "2006-01-02", "2006-01-02 15:04:05", ...).
func (d Deps) timeParse(ctx context.Context, params json.RawMessage) (any, error) {
	var p timeParseParams
	if err := bindParams(params, &p); err != nil {
		return nil, err
	}
	value := strings.TrimSpace(p.Value)
	if value == "" {
		return nil, rpcerr.New(rpcerr.InvalidParams, "value is required")
	}

	if value == "now" {
		return toResult(time.Now().UTC()), nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return toResult(time.Unix(secs, 0).UTC()), nil
	}
	if dur, err := time.ParseDuration(value); err == nil {
		return toResult(time.Now().Add(dur).UTC()), nil
	}

	t, err := dateparse.ParseAny(value)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidParams, "could not parse time value", err)
	}
	return toResult(t.UTC()), nil
}

func toResult(t time.Time) timeParseResult {
	return timeParseResult{Unix: t.Unix(), RFC3339: t.Format(time.RFC3339)}
}
