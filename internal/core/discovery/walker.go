package discovery

import (
	"iter"
	"reflect"

	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

// WalkStats describes the last completed or abandoned walk.
type WalkStats struct {
	Visited   int  `json:"visited"`
	Panics    int  `json:"panics"`
	Revisits  int  `json:"revisits"`
	DepthHits int  `json:"depth_hits"`
	Truncated bool `json:"truncated"`
}

// Walker enumerates host trees depth-first. Host graphs are unowned and may
// be cyclic, so every walk is bounded by MaxDepth and MaxNodes and a node that
// panics is skipped with its subtree.
type Walker struct {
	MaxDepth int
	MaxNodes int

	log    log.Log
	panics *log.Limiter
	last   WalkStats
}

func NewWalker(maxDepth, maxNodes int, logger log.Log) *Walker {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Walker{
		MaxDepth: maxDepth,
		MaxNodes: maxNodes,
		log:      logger.With(log.Component("walker")),
		panics:   log.Cap(10),
	}
}

// Last returns stats of the most recent walk.
func (w *Walker) Last() WalkStats { return w.last }

// Walk yields root and its descendants through Parent.Children. The sequence
// is finite; each call starts a fresh walk.
func (w *Walker) Walk(root scene.Node) iter.Seq[scene.Node] {
	return func(yield func(scene.Node) bool) {
		st := &walkState{w: w, seen: make(map[any]struct{})}
		defer func() { w.last = st.stats }()
		if root == nil {
			return
		}
		st.visit(root, 0, yield)
	}
}

type walkState struct {
	w     *Walker
	seen  map[any]struct{}
	stats WalkStats
	done  bool
}

func (st *walkState) budget() bool {
	if st.w.MaxNodes > 0 && st.stats.Visited >= st.w.MaxNodes {
		st.stats.Truncated = true
		return false
	}
	return true
}

// mark records pointer-like nodes and reports false for ones already seen.
// Value nodes cannot form cycles and are not tracked.
func (st *walkState) mark(n any) bool {
	if n == nil {
		return true
	}
	if k := reflect.TypeOf(n).Kind(); k != reflect.Pointer && k != reflect.Chan && k != reflect.UnsafePointer {
		return true
	}
	if _, dup := st.seen[n]; dup {
		st.stats.Revisits++
		return false
	}
	st.seen[n] = struct{}{}
	return true
}

func (st *walkState) visit(n scene.Node, depth int, yield func(scene.Node) bool) {
	if st.done || !st.budget() || !st.mark(n) {
		return
	}
	st.stats.Visited++
	if !yield(n) {
		st.done = true
		return
	}
	p, ok := n.(scene.Parent)
	if !ok {
		return
	}
	if depth >= st.w.MaxDepth {
		st.stats.DepthHits++
		return
	}
	var children []scene.Node
	if err := scene.Safe(func() error { children = p.Children(); return nil }); err != nil {
		st.skip(err)
		return
	}
	for _, c := range children {
		if c == nil {
			continue
		}
		st.visit(c, depth+1, yield)
		if st.done {
			return
		}
	}
}

func (st *walkState) skip(err error) {
	st.stats.Panics++
	if st.w.panics.Allow() {
		st.w.log.Warn("skipping node", log.Error(err))
	}
}

// WalkComponents yields every non-nil ref held by components reachable from
// root through Child and Sibling links. Depth grows along Child links only.
func (w *Walker) WalkComponents(root scene.Component) iter.Seq[any] {
	return func(yield func(any) bool) {
		st := &walkState{w: w, seen: make(map[any]struct{})}
		defer func() { w.last = st.stats }()
		if root == nil {
			return
		}
		st.component(root, 0, yield)
	}
}

func (st *walkState) component(c scene.Component, depth int, yield func(any) bool) {
	for ; c != nil && !st.done; c = st.sibling(c) {
		if !st.budget() || !st.mark(c) {
			return
		}
		st.stats.Visited++
		var refs []any
		if err := scene.Safe(func() error { refs = c.Refs(); return nil }); err != nil {
			st.skip(err)
			continue
		}
		for _, ref := range refs {
			if ref == nil {
				continue
			}
			if !yield(ref) {
				st.done = true
				return
			}
		}
		if depth >= st.w.MaxDepth {
			st.stats.DepthHits++
			continue
		}
		var child scene.Component
		if err := scene.Safe(func() error { child = c.Child(); return nil }); err != nil {
			st.skip(err)
			continue
		}
		if child != nil {
			st.component(child, depth+1, yield)
		}
	}
}

func (st *walkState) sibling(c scene.Component) scene.Component {
	var next scene.Component
	if err := scene.Safe(func() error { next = c.Sibling(); return nil }); err != nil {
		st.skip(err)
		return nil
	}
	return next
}
