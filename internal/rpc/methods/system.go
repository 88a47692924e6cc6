package methods

import (
	"context"
	"encoding/json"
	"time"
)

type systemInfoResult struct {
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_sec"`
}

func (d Deps) systemInfo(ctx context.Context, params json.RawMessage) (any, error) {
	version := d.Version
	if version == "" {
		version = "dev"
	}
	return systemInfoResult{
		Version:   version,
		UptimeSec: int64(time.Since(d.StartedAt).Seconds()),
	}, nil
}
