package mrtpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Broker resolves a BrokerQuery into the ordered list of MRT files
// that satisfy it (spec.md §4.5 stage 1).
type Broker interface {
	Query(ctx context.Context, q BrokerQuery) ([]FileRef, error)
}

// HTTPBroker queries a BGPKIT-broker-compatible JSON API, the same
// family of service sources.broker_url points at (spec.md §6.3).
type HTTPBroker struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPBroker(baseURL string, client *http.Client) *HTTPBroker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBroker{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

type brokerResponse struct {
	Data struct {
		Items []struct {
			URL       string `json:"url"`
			Collector string `json:"collector_id"`
			Project   string `json:"project"`
			Size      int64  `json:"rough_size"`
		} `json:"items"`
	} `json:"data"`
}

func (b *HTTPBroker) Query(ctx context.Context, q BrokerQuery) ([]FileRef, error) {
	params := url.Values{}
	params.Set("ts_start", strconv.FormatInt(q.Start.Unix(), 10))
	params.Set("ts_end", strconv.FormatInt(q.End.Unix(), 10))
	if len(q.Collectors) > 0 {
		params.Set("collectors", strings.Join(q.Collectors, ","))
	}
	if q.Project != "" {
		params.Set("project", q.Project)
	}
	if q.DumpType != "" {
		params.Set("data_type", string(q.DumpType))
	}

	reqURL := fmt.Sprintf("%s/search?%s", b.BaseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("mrtpipe: broker request: %w", err)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mrtpipe: broker query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mrtpipe: broker query: %s", resp.Status)
	}

	var parsed brokerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("mrtpipe: decode broker response: %w", err)
	}

	refs := make([]FileRef, 0, len(parsed.Data.Items))
	for _, it := range parsed.Data.Items {
		refs = append(refs, FileRef{
			URL:       it.URL,
			Collector: it.Collector,
			Project:   it.Project,
			Size:      it.Size,
		})
	}
	return refs, nil
}
