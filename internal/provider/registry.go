// Crosswatch - Multi-Provider Media Library Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crosswatch

package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNotRegistered is returned by Lookup for unknown provider names. Pairs
// referencing an absent adapter skip gracefully with a pair:skip event.
var ErrNotRegistered = fmt.Errorf("provider not registered")

// Registry holds the process-wide adapter set, keyed by upper-case name.
// It is populated at engine construction and read-only afterwards.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its upper-cased name. Re-registering a name
// replaces the previous adapter.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToUpper(a.Name())] = a
}

// Lookup returns the adapter for a provider name (case-insensitive).
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, strings.ToUpper(name))
	}
	return a, nil
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
