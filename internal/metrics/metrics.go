// Package metrics exposes monocle's operational counters over
// VictoriaMetrics/metrics — a dependency the teacher repository already
// declared but never wired into actual code. It backs the "ambient
// observability" component in SPEC_FULL.md §D, none of which spec.md's
// Non-goals exclude (only real-time BGP session handling and UI
// rendering are out of scope).
package metrics

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Registry isolates monocle's metrics from whatever else links into the
// same process, the way a *prometheus.Registry would.
type Registry struct {
	set *metrics.Set

	activeConnections *metrics.Counter
	activeOperations  *metrics.Counter
	methodCalls       *metrics.Set
	refreshDuration   *metrics.Set
}

// New creates an empty, isolated metrics registry.
func New() *Registry {
	set := metrics.NewSet()
	return &Registry{
		set:               set,
		activeConnections: set.NewCounter("monocle_active_connections"),
		activeOperations:  set.NewCounter("monocle_active_operations"),
		methodCalls:       set,
		refreshDuration:   set,
	}
}

// WritePrometheus writes all registered metrics in the Prometheus text
// exposition format, the shape chi mounts at /metrics.
func (r *Registry) WritePrometheus(w io.Writer) {
	r.set.WritePrometheus(w)
}

func (r *Registry) ConnectionOpened() { r.activeConnections.Inc() }
func (r *Registry) ConnectionClosed() { r.activeConnections.Dec() }

func (r *Registry) OperationStarted() { r.activeOperations.Inc() }
func (r *Registry) OperationEnded()   { r.activeOperations.Dec() }

// MethodCall increments a per-method call counter, label-style, the way
// VictoriaMetrics/metrics encodes labels in the metric name itself.
func (r *Registry) MethodCall(method string) {
	r.methodCalls.GetOrCreateCounter(`monocle_method_calls_total{method="` + method + `"}`).Inc()
}

// RefreshDuration records how long a dataset refresh took, per dataset.
func (r *Registry) RefreshDuration(dataset string, seconds float64) {
	r.refreshDuration.GetOrCreateHistogram(`monocle_refresh_duration_seconds{dataset="` + dataset + `"}`).Update(seconds)
}

// RefreshFailure increments the per-dataset refresh failure counter.
func (r *Registry) RefreshFailure(dataset string) {
	r.set.GetOrCreateCounter(`monocle_refresh_failures_total{dataset="` + dataset + `"}`).Inc()
}
