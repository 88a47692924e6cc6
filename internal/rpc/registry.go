package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// UnaryFunc answers a request with a single result (spec.md §6.1's
// non-streaming methods: system.info, rpki.validate, inspect.query, ...).
type UnaryFunc func(ctx context.Context, params json.RawMessage) (any, error)

// StreamFunc drives a long-running operation (parse.start, search.start),
// calling emit for each data payload until it returns. A non-nil error
// becomes the terminal error envelope; ctx is cancelled when the client
// issues the matching *.cancel call or the connection closes.
type StreamFunc func(ctx context.Context, params json.RawMessage, emit func(any) error) error

type method struct {
	unary  UnaryFunc
	stream StreamFunc
}

// Registry maps method names to handlers, the RPC-layer analogue of
// core/bgpipe.go's Bgpipe.repo map[cmd]NewStage: a name->constructor
// table built once at startup and looked up per incoming call.
type Registry struct {
	methods map[string]method
}

func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]method)}
}

// RegisterUnary registers a single-result method. Panics on duplicate
// registration — a programmer error, not a runtime condition.
func (r *Registry) RegisterUnary(name string, fn UnaryFunc) {
	if _, exists := r.methods[name]; exists {
		panic(fmt.Sprintf("rpc: method %q already registered", name))
	}
	r.methods[name] = method{unary: fn}
}

// RegisterStream registers a streaming method.
func (r *Registry) RegisterStream(name string, fn StreamFunc) {
	if _, exists := r.methods[name]; exists {
		panic(fmt.Sprintf("rpc: method %q already registered", name))
	}
	r.methods[name] = method{stream: fn}
}

// Names lists every registered method, for system.methods.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}

func (r *Registry) lookup(name string) (method, bool) {
	m, ok := r.methods[name]
	return m, ok
}
