package tracking

import (
	"sync"
	"time"

	"github.com/zeusync/scenehook/internal/core/scene"
)

// Target is the engine's current belief about which node is the player.
type Target struct {
	Node       scene.Node
	Strategy   string
	Score      float64
	ResolvedAt time.Time
	// Key is scene.Identify(Node).
	Key uint64
}

// Name returns the node name when the node has one.
func (t Target) Name() string {
	if n, ok := t.Node.(scene.Named); ok {
		var name string
		_ = scene.Safe(func() error { name = n.Name(); return nil })
		return name
	}
	return ""
}

// Binding holds the single active Target. Which node is bound is changed only
// by the resolver through Offer and Clear; the sync loop marks a bound target
// as confirmed once it produced a valid sample.
type Binding struct {
	mu        sync.RWMutex
	target    *Target
	confirmed bool
}

func NewBinding() *Binding {
	return &Binding{}
}

// Offer proposes t as the active target and reports whether it was bound.
// A confirmed target is never replaced; an unconfirmed one only by a strictly
// higher score. Re-offering the bound node is a no-op.
func (b *Binding) Offer(t Target) bool {
	if t.Node == nil {
		return false
	}
	if t.Key == 0 {
		t.Key = scene.Identify(t.Node)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.target != nil {
		if b.target.Key == t.Key || b.confirmed || t.Score <= b.target.Score {
			return false
		}
	}
	b.target = &t
	b.confirmed = false
	return true
}

// Current returns the bound target.
func (b *Binding) Current() (Target, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.target == nil {
		return Target{}, false
	}
	return *b.target, true
}

// Confirm marks the target identified by key as producing valid samples.
func (b *Binding) Confirm(key uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.target != nil && b.target.Key == key {
		b.confirmed = true
	}
}

func (b *Binding) Confirmed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.target != nil && b.confirmed
}

// Clear drops the active target and returns it.
func (b *Binding) Clear() (Target, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.target == nil {
		return Target{}, false
	}
	old := *b.target
	b.target = nil
	b.confirmed = false
	return old, true
}
