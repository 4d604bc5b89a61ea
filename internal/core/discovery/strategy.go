package discovery

import (
	"fmt"

	"github.com/zeusync/scenehook/internal/core/scene"
)

const (
	StrategyAccessor   = "accessor"
	StrategyStructural = "structural"
	StrategyComponent  = "component"
	StrategyHook       = "hook"
)

// Candidate is a strategy's best pick for the player.
type Candidate struct {
	Node     scene.Node
	Score    float64
	Strategy string
}

// Strategy is one independent way of finding the player.
type Strategy interface {
	Name() string
	Find() (Candidate, error)
}

// unwrap resolves late-bound accessor values.
func unwrap(v any) any {
	switch fn := v.(type) {
	case func() scene.Node:
		return fn()
	case func() any:
		return fn()
	case func() scene.Handle:
		return fn()
	default:
		return v
	}
}

// AccessorStrategy reads globally exposed host values that already point at
// the player. A hit is trusted and gets a fixed confidence.
type AccessorStrategy struct {
	accessors  scene.Accessors
	keys       []string
	confidence float64
}

func NewAccessorStrategy(accessors scene.Accessors, keys []string, confidence float64) *AccessorStrategy {
	return &AccessorStrategy{accessors: accessors, keys: keys, confidence: confidence}
}

func (s *AccessorStrategy) Name() string { return StrategyAccessor }

func (s *AccessorStrategy) Find() (Candidate, error) {
	if s.accessors == nil {
		return Candidate{}, ErrNoCandidate
	}
	for _, key := range s.keys {
		raw, ok := s.accessors.Lookup(key)
		if !ok || raw == nil {
			continue
		}
		var v any
		if err := scene.Safe(func() error { v = unwrap(raw); return nil }); err != nil {
			return Candidate{}, fmt.Errorf("accessor %q: %w", key, err)
		}
		p, ok := v.(scene.Positioned)
		if !ok {
			continue
		}
		var pos scene.Vec3
		if err := scene.Safe(func() error { pos = p.Position(); return nil }); err != nil || !pos.Valid() {
			continue
		}
		return Candidate{Node: v, Score: s.confidence, Strategy: s.Name()}, nil
	}
	return Candidate{}, ErrNoCandidate
}

// StructuralStrategy walks the scene graph and keeps the highest scoring
// acceptable node. Ties keep the first node in traversal order.
type StructuralStrategy struct {
	name   string
	scene  func() scene.Handle
	walker *Walker
	scorer *Scorer
}

func NewStructuralStrategy(sceneFn func() scene.Handle, walker *Walker, scorer *Scorer) *StructuralStrategy {
	return &StructuralStrategy{name: StrategyStructural, scene: sceneFn, walker: walker, scorer: scorer}
}

// Named returns a copy reporting a different strategy name, used when the
// same scan is triggered by a host hook.
func (s *StructuralStrategy) Named(name string) *StructuralStrategy {
	c := *s
	c.name = name
	return &c
}

func (s *StructuralStrategy) Name() string { return s.name }

func (s *StructuralStrategy) Find() (Candidate, error) {
	var h scene.Handle
	if s.scene != nil {
		h = s.scene()
	}
	if h == nil {
		return Candidate{}, ErrNoScene
	}
	best, found := Candidate{}, false
	root := true
	for n := range s.walker.Walk(h) {
		if root {
			root = false
			continue
		}
		score, ok := accept(s.scorer, n)
		if ok && (!found || score > best.Score) {
			best, found = Candidate{Node: n, Score: score, Strategy: s.name}, true
		}
	}
	if !found {
		return Candidate{}, ErrNoCandidate
	}
	return best, nil
}

// ComponentStrategy scores scene objects referenced by the host component
// tree, for hosts whose scene root is not reachable directly.
type ComponentStrategy struct {
	roots  func() []scene.Component
	walker *Walker
	scorer *Scorer
}

func NewComponentStrategy(roots func() []scene.Component, walker *Walker, scorer *Scorer) *ComponentStrategy {
	return &ComponentStrategy{roots: roots, walker: walker, scorer: scorer}
}

func (s *ComponentStrategy) Name() string { return StrategyComponent }

func (s *ComponentStrategy) Find() (Candidate, error) {
	if s.roots == nil {
		return Candidate{}, ErrNoCandidate
	}
	best, found := Candidate{}, false
	for _, root := range s.roots() {
		for ref := range s.walker.WalkComponents(root) {
			if m, ok := ref.(scene.SceneMarker); ok && m.IsScene() {
				continue
			}
			score, ok := accept(s.scorer, ref)
			if ok && (!found || score > best.Score) {
				best, found = Candidate{Node: ref, Score: score, Strategy: s.Name()}, true
			}
		}
	}
	if !found {
		return Candidate{}, ErrNoCandidate
	}
	return best, nil
}

func accept(s *Scorer, n scene.Node) (score float64, ok bool) {
	if err := scene.Safe(func() error { score, ok = s.Accept(n); return nil }); err != nil {
		return 0, false
	}
	return score, ok
}
