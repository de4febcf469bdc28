// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package farcall

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// A Func is a function exposed for cross-process execution. Positional
// arguments and keyword arguments arrive already decoded from their wire
// representation; the result is encoded for the return trip by the caller.
type Func func(ctx context.Context, args []any, kwargs map[string]any) (any, error)

// An Entry describes a registered function. Async entries manage their own
// blocking and may run directly on the service goroutine for a call;
// synchronous entries may be offloaded to a worker pool by the serving peer.
type Entry struct {
	Run   Func
	Async bool
}

// A Registry maps call targets to their implementations. Registration is the
// only way a function becomes callable across the process boundary. The
// methods of a Registry are safe for concurrent use by multiple goroutines.
type Registry struct {
	μ   sync.RWMutex
	fns map[Target]Entry
}

// NewRegistry constructs a new empty registry.
func NewRegistry() *Registry { return &Registry{fns: make(map[Target]Entry)} }

// Register adds fn to r as a synchronous entry under the given module and
// function names. It replaces any existing entry for the same target, and
// panics if module or function is empty or fn is nil. Register returns r to
// permit chaining.
func (r *Registry) Register(module, function string, fn Func) *Registry {
	return r.add(Target{Module: module, Function: function}, Entry{Run: fn})
}

// RegisterAsync adds fn to r under the given module and function names,
// marked as managing its own blocking. It replaces any existing entry for the
// same target, and panics if module or function is empty or fn is nil.
// RegisterAsync returns r to permit chaining.
func (r *Registry) RegisterAsync(module, function string, fn Func) *Registry {
	return r.add(Target{Module: module, Function: function}, Entry{Run: fn, Async: true})
}

func (r *Registry) add(t Target, e Entry) *Registry {
	if t.Module == "" || t.Function == "" {
		panic("registry: empty target name")
	} else if e.Run == nil {
		panic("registry: nil function")
	}
	r.μ.Lock()
	defer r.μ.Unlock()
	if r.fns == nil {
		r.fns = make(map[Target]Entry)
	}
	r.fns[t] = e
	return r
}

// Resolve returns the entry registered for t, or a [NotFoundError] if there
// is none.
func (r *Registry) Resolve(t Target) (Entry, error) {
	r.μ.RLock()
	defer r.μ.RUnlock()
	e, ok := r.fns[t]
	if !ok {
		return Entry{}, &NotFoundError{Target: t}
	}
	return e, nil
}

// Targets returns the registered targets in lexicographic order.
func (r *Registry) Targets() []Target {
	r.μ.RLock()
	defer r.μ.RUnlock()
	out := make([]Target, 0, len(r.fns))
	for t := range r.fns {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b Target) int {
		return cmp.Or(cmp.Compare(a.Module, b.Module), cmp.Compare(a.Function, b.Function))
	})
	return out
}

// Len reports the number of registered targets.
func (r *Registry) Len() int {
	r.μ.RLock()
	defer r.μ.RUnlock()
	return len(r.fns)
}
