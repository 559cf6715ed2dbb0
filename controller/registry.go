package controller

import (
	"sort"
	"sync"
)

// Registry is the controller's bookkeeping of live handles, indexed four
// ways and kept view-consistent under a single lock.
type Registry struct {
	mu      sync.RWMutex
	byID    map[uint64]Handle
	byAlias map[string]Handle
	byGroup map[string]map[uint64]Handle
	byPath  map[string]map[uint64]Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[uint64]Handle),
		byAlias: make(map[string]Handle),
		byGroup: make(map[string]map[uint64]Handle),
		byPath:  make(map[string]map[uint64]Handle),
	}
}

// Add inserts h into every applicable index. It returns ErrDuplicateAlias if
// h's alias is already taken by another live handle.
func (r *Registry) Add(h Handle, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byAlias[h.Alias()]; ok && existing.ID() != h.ID() {
		return ErrDuplicateAlias
	}

	r.byID[h.ID()] = h
	r.byAlias[h.Alias()] = h

	group := h.Group()
	if group == "" {
		group = "global"
	}
	if r.byGroup[group] == nil {
		r.byGroup[group] = make(map[uint64]Handle)
	}
	r.byGroup[group][h.ID()] = h

	if path != "" {
		if r.byPath[path] == nil {
			r.byPath[path] = make(map[uint64]Handle)
		}
		r.byPath[path][h.ID()] = h
	}

	return nil
}

// Remove deletes h from every index, intended for the moment a handle
// transitions to closed/exited/spawn-failed.
func (r *Registry) Remove(h Handle, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byID, h.ID())
	delete(r.byAlias, h.Alias())

	group := h.Group()
	if group == "" {
		group = "global"
	}
	if m, ok := r.byGroup[group]; ok {
		delete(m, h.ID())
		if len(m) == 0 {
			delete(r.byGroup, group)
		}
	}
	if path != "" {
		if m, ok := r.byPath[path]; ok {
			delete(m, h.ID())
			if len(m) == 0 {
				delete(r.byPath, path)
			}
		}
	}
}

// ByID returns the live handle with the given id.
func (r *Registry) ByID(id uint64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// ByAlias returns the live handle with the given alias.
func (r *Registry) ByAlias(alias string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byAlias[alias]
	return h, ok
}

// InGroup returns every live handle in the named group, ordered by
// ascending id.
func (r *Registry) InGroup(group string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byGroup[group]
	out := make([]Handle, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// NotInGroup returns every live handle not in the named group.
func (r *Registry) NotInGroup(group string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.byID))
	excluded := r.byGroup[group]
	for id, h := range r.byID {
		if _, ok := excluded[id]; ok {
			continue
		}
		out = append(out, h)
	}
	return out
}

// All returns every live handle, in no particular order.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handle, 0, len(r.byID))
	for _, h := range r.byID {
		out = append(out, h)
	}
	return out
}

// WithPath returns every live handle spawned from the given script path.
func (r *Registry) WithPath(path string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.byPath[path]
	out := make([]Handle, 0, len(m))
	for _, h := range m {
		out = append(out, h)
	}
	return out
}

// Idle reports whether h has no pending requests and is in HandleReady.
// pending is supplied by the dispatcher, which is the only component that
// knows a handle's outstanding request count.
func Idle(h Handle, pending int) bool {
	return pending == 0 && h.State() == HandleReady
}

// IdleInList filters handles to those with zero pending requests per
// pendingOf, preserving input order.
func IdleInList(handles []Handle, pendingOf func(Handle) int) []Handle {
	out := make([]Handle, 0, len(handles))
	for _, h := range handles {
		if Idle(h, pendingOf(h)) {
			out = append(out, h)
		}
	}
	return out
}

// LeastBusyInList returns the handle with the fewest pending requests,
// breaking ties by lowest id. Returns nil if handles is empty.
func LeastBusyInList(handles []Handle, pendingOf func(Handle) int) Handle {
	var best Handle
	bestPending := -1
	for _, h := range handles {
		p := pendingOf(h)
		if best == nil || p < bestPending || (p == bestPending && h.ID() < best.ID()) {
			best = h
			bestPending = p
		}
	}
	return best
}
