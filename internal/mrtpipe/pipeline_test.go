package mrtpipe

import (
	"context"
	"fmt"
	"net/netip"
	"testing"

	"github.com/rs/zerolog"
)

type fakeBroker struct {
	files []FileRef
	err   error
}

func (b *fakeBroker) Query(ctx context.Context, q BrokerQuery) ([]FileRef, error) {
	return b.files, b.err
}

func newTestPipeline(files []FileRef, elementsByURL map[string][]BGPElement) *Pipeline {
	p := NewPipeline(zerolog.Nop(), &fakeBroker{files: files}, nil)
	p.fetchAndDecode = func(ctx context.Context, ref FileRef) ([]BGPElement, error) {
		return elementsByURL[ref.URL], nil
	}
	return p
}

func TestPipelineRunPreservesPerFileOrderAcrossBatches(t *testing.T) {
	files := []FileRef{
		{URL: "a.mrt", Collector: "rrc00"},
		{URL: "b.mrt", Collector: "rrc00"},
	}
	elements := map[string][]BGPElement{
		"a.mrt": {{OriginASN: 1}, {OriginASN: 2}},
		"b.mrt": {{OriginASN: 3}, {OriginASN: 4}},
	}
	p := newTestPipeline(files, elements)

	var batches []Batch
	err := p.Run(context.Background(), Options{BatchSize: 1}, nil, func(b Batch) error {
		batches = append(batches, b)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(batches) != 4 {
		t.Fatalf("want 4 batches, got %d", len(batches))
	}
	for i, want := range []uint32{1, 2, 3, 4} {
		if len(batches[i].Elements) != 1 || batches[i].Elements[0].OriginASN != want {
			t.Errorf("batch %d: want origin %d, got %+v", i, want, batches[i])
		}
	}
}

func TestPipelineRunAppliesFilter(t *testing.T) {
	files := []FileRef{{URL: "a.mrt", Collector: "rrc00"}}
	elements := map[string][]BGPElement{
		"a.mrt": {
			{OriginASN: 13335, Prefix: netip.MustParsePrefix("1.1.1.0/24")},
			{OriginASN: 64500, Prefix: netip.MustParsePrefix("203.0.113.0/24")},
		},
	}
	p := newTestPipeline(files, elements)

	var total int
	err := p.Run(context.Background(), Options{Filter: Filter{OriginASN: []uint32{13335}}}, nil, func(b Batch) error {
		total += len(b.Elements)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if total != 1 {
		t.Errorf("want 1 filtered element, got %d", total)
	}
}

func TestPipelineRunStopsOnCancelledToken(t *testing.T) {
	files := []FileRef{{URL: "a.mrt"}, {URL: "b.mrt"}}
	elements := map[string][]BGPElement{
		"a.mrt": {{OriginASN: 1}},
		"b.mrt": {{OriginASN: 2}},
	}
	p := newTestPipeline(files, elements)

	var token Token
	token.Cancel()

	var total int
	err := p.Run(context.Background(), Options{}, &token, func(b Batch) error {
		total += len(b.Elements)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if total != 0 {
		t.Errorf("want 0 elements after cancellation, got %d", total)
	}
}

func TestPipelineRunCountsExhaustedRetriesAsFailedAndContinues(t *testing.T) {
	files := []FileRef{
		{URL: "bad.mrt", Collector: "rrc00"},
		{URL: "good.mrt", Collector: "rrc00"},
	}
	elements := map[string][]BGPElement{
		"good.mrt": {{OriginASN: 1}},
	}
	boom := fmt.Errorf("fetch failed")

	p := NewPipeline(zerolog.Nop(), &fakeBroker{files: files}, nil)
	p.fetchAndDecode = func(ctx context.Context, ref FileRef) ([]BGPElement, error) {
		if ref.URL == "bad.mrt" {
			return nil, boom
		}
		return elements[ref.URL], nil
	}

	var total int
	err := p.Run(context.Background(), Options{MaxRetries: 1}, nil, func(b Batch) error {
		total += len(b.Elements)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("want the run to complete despite one file exhausting retries, got: %v", err)
	}
	if total != 1 {
		t.Errorf("want the surviving file's element still emitted, got %d", total)
	}
}

func TestPipelineRunPropagatesOnBatchError(t *testing.T) {
	files := []FileRef{{URL: "a.mrt"}}
	elements := map[string][]BGPElement{"a.mrt": {{OriginASN: 1}}}
	p := newTestPipeline(files, elements)

	boom := fmt.Errorf("boom")
	err := p.Run(context.Background(), Options{}, nil, func(b Batch) error {
		return boom
	}, nil)
	if err == nil {
		t.Fatal("want error propagated from onBatch")
	}
}
