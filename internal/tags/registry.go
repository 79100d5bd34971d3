// Package tags provides the in-memory tag registry read by the tick loops.
// Values arrive asynchronously (MQTT, GPIO) and are read synchronously.
package tags

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sweeney/sia-local-control/internal/logic"
)

// Registry caches the latest tag values per source. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[logic.SourceRef]map[string]logic.Reading
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[logic.SourceRef]map[string]logic.Reading)}
}

// Tag returns the cached value, or logic.Absent if the source or tag is unknown.
func (r *Registry) Tag(name string, src logic.SourceRef) logic.Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[src][name]
}

// Set stores a single tag value. Setting an absent reading removes the tag.
func (r *Registry) Set(src logic.SourceRef, name string, v logic.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setLocked(src, name, v)
}

func (r *Registry) setLocked(src logic.SourceRef, name string, v logic.Reading) {
	if !v.Present() {
		delete(r.sources[src], name)
		return
	}
	m, ok := r.sources[src]
	if !ok {
		m = make(map[string]logic.Reading)
		r.sources[src] = m
	}
	m[name] = v
}

// Apply merges a JSON object of tag values into src.
// Tags not mentioned in the payload keep their previous value; a null
// value removes the tag.
func (r *Registry) Apply(src logic.SourceRef, payload []byte) error {
	var values map[string]logic.Reading
	if err := json.Unmarshal(payload, &values); err != nil {
		return fmt.Errorf("decode tags for %s: %w", src, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, v := range values {
		r.setLocked(src, name, v)
	}
	return nil
}

// Forget drops every tag cached for src.
func (r *Registry) Forget(src logic.SourceRef) {
	r.mu.Lock()
	delete(r.sources, src)
	r.mu.Unlock()
}

// Sources returns the known sources in sorted order.
func (r *Registry) Sources() []logic.SourceRef {
	r.mu.RLock()
	out := make([]logic.SourceRef, 0, len(r.sources))
	for src := range r.sources {
		out = append(out, src)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns a copy of all tags for src.
func (r *Registry) Snapshot(src logic.SourceRef) map[string]logic.Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]logic.Reading, len(r.sources[src]))
	for k, v := range r.sources[src] {
		out[k] = v
	}
	return out
}
