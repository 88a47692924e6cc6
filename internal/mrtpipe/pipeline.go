package mrtpipe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options configures a pipeline run (spec.md §4.5, §6.1 "parse.start").
type Options struct {
	Query       BrokerQuery
	Filter      Filter
	Concurrency int // worker pool size, default 4
	BatchSize   int // elements per Batch emitted downstream, default 5000
	MaxRetries  int // per-file transient-failure retries, default 3
}

// Token is a cooperative cancellation handle for an in-flight run
// (spec.md §6.1 "parse.cancel"/"search.cancel"): cancelling it stops
// the run at the next batch or file boundary rather than mid-decode.
type Token struct {
	cancelled atomic.Bool
}

func (t *Token) Cancel()        { t.cancelled.Store(true) }
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Pipeline runs the broker-query -> download -> decode -> filter ->
// batch sequence of spec.md §4.5.
type Pipeline struct {
	zerolog.Logger

	broker Broker
	client *http.Client

	// fetchAndDecode defaults to downloading+decompressing+decoding ref
	// for real; tests override it to avoid network/MRT fixtures.
	fetchAndDecode func(ctx context.Context, ref FileRef) ([]BGPElement, error)
}

func NewPipeline(logger zerolog.Logger, broker Broker, client *http.Client) *Pipeline {
	if client == nil {
		client = http.DefaultClient
	}
	p := &Pipeline{
		Logger: logger.With().Str("component", "mrtpipe").Logger(),
		broker: broker,
		client: client,
	}
	p.fetchAndDecode = p.defaultFetchAndDecode
	return p
}

func (p *Pipeline) defaultFetchAndDecode(ctx context.Context, ref FileRef) ([]BGPElement, error) {
	tmpPath, cleanup, err := fetchDecoded(ctx, p.client, ref)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return decodeFile(ctx, tmpPath, ref.Collector, p.Logger)
}

// Run streams decoded, filtered, batched elements to onBatch in file
// order and reports progress to onProgress (both optional). It returns
// once every file has been processed, the token is cancelled, or an
// unrecoverable error occurs.
func (p *Pipeline) Run(ctx context.Context, opts Options, token *Token, onBatch func(Batch) error, onProgress func(Progress)) error {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5000
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	cf, err := compileFilter(opts.Filter)
	if err != nil {
		return fmt.Errorf("mrtpipe: compile filter: %w", err)
	}

	files, err := p.broker.Query(ctx, opts.Query)
	if err != nil {
		return fmt.Errorf("mrtpipe: broker query: %w", err)
	}

	total := len(files)
	var completed atomic.Int64
	var failed atomic.Int64
	var emitted atomic.Int64
	start := time.Now()

	progressLimiter := rate.NewLimiter(rate.Limit(4), 1) // at most 4 progress events/sec
	reportProgress := func(stage Stage) {
		if onProgress == nil || !progressLimiter.Allow() {
			return
		}
		done := completed.Load()
		processed := done + failed.Load() // files no longer in flight, for rate/ETA purposes
		elapsed := time.Since(start).Seconds()
		rps := 0.0
		eta := 0.0
		if elapsed > 0 {
			rps = float64(processed) / elapsed
		}
		if rps > 0 && int64(total) > processed {
			eta = float64(total-int(processed)) / rps
		}
		onProgress(Progress{
			Stage:           stage,
			FilesCompleted:  int(done),
			FilesFailed:     int(failed.Load()),
			TotalFiles:      total,
			ElementsEmitted: emitted.Load(),
			RatePerSec:      rps,
			ETASecs:         math.Round(eta*100) / 100,
		})
	}
	reportProgress(StageQueued)

	var mu sync.Mutex // serializes onBatch calls so file order is preserved in emission
	nextToEmit := 0
	pending := map[int][]Batch{}
	emitReady := func(idx int, bs ...Batch) error {
		mu.Lock()
		defer mu.Unlock()
		pending[idx] = bs
		for {
			next, ok := pending[nextToEmit]
			if !ok {
				return nil
			}
			delete(pending, nextToEmit)
			nextToEmit++
			for _, b := range next {
				if token != nil && token.Cancelled() {
					return nil
				}
				if onBatch != nil {
					if err := onBatch(b); err != nil {
						return err
					}
				}
				emitted.Add(int64(len(b.Elements)))
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	reportProgress(StageDownloading)
	for i, ref := range files {
		i, ref := i, ref
		g.Go(func() error {
			if token != nil && token.Cancelled() {
				return nil
			}
			els, err := p.processFile(gctx, ref, cf, opts, token)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("mrtpipe: file %s: %w", ref.URL, err)
				}
				// Retries exhausted on a transient fetch/decode failure:
				// this file is counted as failed but the run continues
				// with everything else still in flight.
				p.Warn().Err(err).Str("url", ref.URL).Msg("mrtpipe: file failed, skipping")
				failed.Add(1)
				if err := emitReady(i, Batch{Collector: ref.Collector, FileIndex: i}); err != nil {
					return err
				}
				reportProgress(StageProcessing)
				return nil
			}

			var batches []Batch
			for start := 0; start < len(els); start += opts.BatchSize {
				end := min(start+opts.BatchSize, len(els))
				batches = append(batches, Batch{Collector: ref.Collector, FileIndex: i, Elements: els[start:end]})
			}
			if len(batches) == 0 {
				batches = append(batches, Batch{Collector: ref.Collector, FileIndex: i})
			}
			if err := emitReady(i, batches...); err != nil {
				return err
			}

			completed.Add(1)
			reportProgress(StageProcessing)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	reportProgress(StageFinalizing)
	reportProgress(StageDone)
	return nil
}

// processFile downloads, decompresses, decodes, and filters one file,
// retrying transient fetch failures with exponential backoff.
func (p *Pipeline) processFile(ctx context.Context, ref FileRef, cf *compiledFilter, opts Options, token *Token) ([]BGPElement, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if token != nil && token.Cancelled() {
			return nil, nil
		}
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		els, err := p.fetchAndDecode(ctx, ref)
		if err != nil {
			lastErr = err
			p.Warn().Err(err).Str("url", ref.URL).Int("attempt", attempt).Msg("mrtpipe: fetch failed, retrying")
			continue
		}

		filtered := els[:0]
		for _, el := range els {
			if cf.Match(el) {
				filtered = append(filtered, el)
			}
		}
		return filtered, nil
	}

	return nil, fmt.Errorf("mrtpipe: exhausted %d retries: %w", opts.MaxRetries, lastErr)
}
