package rpc

import (
	"context"
	"errors"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/bgpkit/monocle/internal/metrics"
)

// errAtCapacity signals the concurrency ceiling is full; conn.go maps
// it to a terminal RateLimited response.
var errAtCapacity = errors.New("rpc: operation concurrency ceiling reached")

// opTracker tracks in-flight streaming operations for one connection,
// keyed by op_id, so a *.cancel call can find and cancel the matching
// context. Generalizes stages/limit.go's xsync-map-of-per-key-state
// pattern from "per-prefix/per-origin counters" to "per-operation
// cancel funcs".
type opTracker struct {
	ops *xsync.Map[string, context.CancelFunc]
	sem chan struct{} // concurrency ceiling for this connection's operations only; other connections' operations do not count against it
	m   *metrics.Registry
}

func newOpTracker(maxConcurrent int, m *metrics.Registry) *opTracker {
	if maxConcurrent <= 0 {
		maxConcurrent = 64
	}
	return &opTracker{
		ops: xsync.NewMap[string, context.CancelFunc](),
		sem: make(chan struct{}, maxConcurrent),
		m:   m,
	}
}

// acquire takes a concurrency slot, failing immediately if the ceiling
// is already full (spec.md §3.2: "attempts beyond the ceiling fail
// terminally with a rate-limit error") rather than queuing behind
// whatever operations are already running.
func (t *opTracker) acquire() error {
	select {
	case t.sem <- struct{}{}:
		if t.m != nil {
			t.m.OperationStarted()
		}
		return nil
	default:
		return errAtCapacity
	}
}

func (t *opTracker) release() {
	<-t.sem
	if t.m != nil {
		t.m.OperationEnded()
	}
}

func (t *opTracker) register(opID string, cancel context.CancelFunc) {
	t.ops.Store(opID, cancel)
}

func (t *opTracker) forget(opID string) {
	t.ops.Delete(opID)
}

// cancel stops the operation identified by opID, returning false if no
// such operation is currently tracked. The *.cancel method handlers
// turn a false return into a terminal InvalidParams error; this layer
// only reports whether opID was found.
func (t *opTracker) cancel(opID string) bool {
	cancel, ok := t.ops.Load(opID)
	if !ok {
		return false
	}
	cancel()
	return true
}

// cancelAll stops every operation tracked, used when a connection closes.
func (t *opTracker) cancelAll() {
	t.ops.Range(func(opID string, cancel context.CancelFunc) bool {
		cancel()
		return true
	})
}

type opsCtxKey struct{}

func withOps(ctx context.Context, t *opTracker) context.Context {
	return context.WithValue(ctx, opsCtxKey{}, t)
}

// CancelOperation cancels the streaming operation identified by opID on
// the connection that produced ctx (spec.md §6.1 "parse.cancel",
// "search.cancel"). internal/rpc/methods calls this from those two
// methods' handlers instead of reaching into connection internals.
// Returns false if ctx carries no tracker or opID isn't tracked.
func CancelOperation(ctx context.Context, opID string) bool {
	t, ok := ctx.Value(opsCtxKey{}).(*opTracker)
	if !ok {
		return false
	}
	return t.cancel(opID)
}
