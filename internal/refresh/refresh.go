// Package refresh implements the refresh coordinator of spec.md §4.3:
// per-dataset freshness tracking, single-flight deduplication of
// concurrent refresh requests, and process-startup bootstrap.
package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/bgpkit/monocle/internal/metrics"
	"github.com/bgpkit/monocle/internal/repo"
)

// State is one of the freshness states from spec.md §4.3.
type State int

const (
	Absent State = iota
	Ready
	Stale
	Refreshing
	Error
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Ready:
		return "ready"
	case Stale:
		return "stale"
	case Refreshing:
		return "refreshing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Dataset registers one refreshable dataset with the coordinator: how
// to read its current freshness metadata and how to perform a refresh.
type Dataset struct {
	ID        string
	TTL       time.Duration
	MetaFn    func(ctx context.Context) (repo.Meta, bool, error)
	RefreshFn func(ctx context.Context) error
}

type status struct {
	mu         sync.Mutex
	refreshing bool
	lastErr    error
}

func newStatus() *status { return &status{} }

// Coordinator owns freshness state and single-flight deduplication for
// every registered dataset. One Coordinator is created per process and
// shared by every lens and method handler.
type Coordinator struct {
	zerolog.Logger

	metrics  *metrics.Registry
	group    singleflight.Group
	datasets *xsync.Map[string, Dataset]
	statuses *xsync.Map[string, *status]
}

func New(logger zerolog.Logger, m *metrics.Registry) *Coordinator {
	return &Coordinator{
		Logger:   logger.With().Str("component", "refresh").Logger(),
		metrics:  m,
		datasets: xsync.NewMap[string, Dataset](),
		statuses: xsync.NewMap[string, *status](),
	}
}

// Register adds or replaces a dataset's refresh definition.
func (c *Coordinator) Register(ds Dataset) {
	c.datasets.Store(ds.ID, ds)
}

// Datasets lists every registered dataset id, sorted. Used by
// database.status to report on all datasets in one call rather than
// requiring the caller to already know the ids (spec.md's
// "database.status returns per-dataset freshness state ... for all
// datasets in one call").
func (c *Coordinator) Datasets() []string {
	var ids []string
	c.datasets.Range(func(id string, _ Dataset) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

// State reports the current freshness state of dataset id.
func (c *Coordinator) State(ctx context.Context, id string) (State, error) {
	ds, ok := c.datasets.Load(id)
	if !ok {
		return Absent, fmt.Errorf("refresh: unknown dataset %q", id)
	}

	st, _ := c.statuses.LoadOrCompute(id, newStatus)
	st.mu.Lock()
	refreshing := st.refreshing
	lastErr := st.lastErr
	st.mu.Unlock()
	if refreshing {
		return Refreshing, nil
	}

	meta, ok, err := ds.MetaFn(ctx)
	if err != nil {
		return Absent, fmt.Errorf("refresh: state %s: %w", id, err)
	}
	if !ok || meta.RecordCount == 0 {
		if lastErr != nil {
			return Error, nil
		}
		return Absent, nil
	}
	if lastErr != nil {
		return Error, nil
	}
	if ds.TTL > 0 && time.Since(meta.LoadedAt) > ds.TTL {
		return Stale, nil
	}
	return Ready, nil
}

// Refresh triggers a refresh of dataset id, deduplicating concurrent
// callers into a single in-flight attempt (spec.md §3.2, §4.3). With
// force=false, a Ready dataset is left untouched. A refresh already in
// flight is always joined regardless of force.
func (c *Coordinator) Refresh(ctx context.Context, id string, force bool) error {
	ds, ok := c.datasets.Load(id)
	if !ok {
		return fmt.Errorf("refresh: unknown dataset %q", id)
	}

	if !force {
		state, err := c.State(ctx, id)
		if err != nil {
			return err
		}
		if state == Ready {
			return nil
		}
	}

	st, _ := c.statuses.LoadOrCompute(id, newStatus)

	st.mu.Lock()
	st.refreshing = true
	st.mu.Unlock()

	start := time.Now()
	_, err, _ := c.group.Do(id, func() (any, error) {
		return nil, ds.RefreshFn(ctx)
	})

	st.mu.Lock()
	st.refreshing = false
	st.lastErr = err
	st.mu.Unlock()

	if c.metrics != nil {
		if err != nil {
			c.metrics.RefreshFailure(id)
		} else {
			c.metrics.RefreshDuration(id, time.Since(start).Seconds())
		}
	}

	if err != nil {
		c.Warn().Err(err).Str("dataset", id).Msg("refresh failed")
		return fmt.Errorf("refresh: %s: %w", id, err)
	}
	return nil
}

// EnsureAvailable triggers (and waits for) a refresh of every Absent
// dataset among ids, leaving Stale datasets as-is: the caller's lens
// decides whether stale data is acceptable (spec.md §4.3 "Bootstrap").
func (c *Coordinator) EnsureAvailable(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		state, err := c.State(ctx, id)
		if err != nil {
			return err
		}
		if state != Absent {
			continue
		}
		if err := c.Refresh(ctx, id, false); err != nil {
			return err
		}
	}
	return nil
}
