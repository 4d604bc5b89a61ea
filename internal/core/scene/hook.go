package scene

import (
	"slices"
	"sync"
)

// Hook is a Notifier fired explicitly by its owner.
type Hook struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

func (h *Hook) Subscribe(fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = make(map[int]func())
	}
	id := h.next
	h.next++
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Fire calls every subscriber in subscription order.
func (h *Hook) Fire() {
	h.mu.Lock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	slices.Sort(ids)
	for _, id := range ids {
		h.mu.Lock()
		fn, ok := h.subs[id]
		h.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (h *Hook) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Registry is a mutable Accessors implementation.
type Registry struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewRegistry() *Registry {
	return &Registry{values: make(map[string]any)}
}

func (r *Registry) Set(name string, v any) {
	r.mu.Lock()
	r.values[name] = v
	r.mu.Unlock()
}

func (r *Registry) Delete(name string) {
	r.mu.Lock()
	delete(r.values, name)
	r.mu.Unlock()
}

func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[name]
	return v, ok
}
