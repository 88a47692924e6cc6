package rpc

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistryDuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.RegisterUnary("system.info", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatal("want panic on duplicate registration")
		}
	}()
	r.RegisterUnary("system.info", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, nil
	})
}

func TestRegistryNamesListsEveryMethod(t *testing.T) {
	r := NewRegistry()
	r.RegisterUnary("system.info", func(ctx context.Context, params json.RawMessage) (any, error) { return nil, nil })
	r.RegisterStream("parse.start", func(ctx context.Context, params json.RawMessage, emit func(any) error) error { return nil })

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("want 2 methods, got %d: %v", len(names), names)
	}
}

func TestRegistryLookupMissingMethod(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.lookup("nope"); ok {
		t.Fatal("want lookup of unregistered method to fail")
	}
}
