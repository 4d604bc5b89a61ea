package discovery

import "github.com/zeusync/scenehook/internal/core/scene"

// SceneLocator finds the host scene root.
type SceneLocator struct {
	accessors  scene.Accessors
	keys       []string
	components func() []scene.Component
	walker     *Walker
}

func NewSceneLocator(accessors scene.Accessors, keys []string, components func() []scene.Component, walker *Walker) *SceneLocator {
	return &SceneLocator{accessors: accessors, keys: keys, components: components, walker: walker}
}

// Locate returns the scene root and the route it was found by.
func (l *SceneLocator) Locate() (scene.Handle, string, bool) {
	if l.accessors != nil {
		for _, key := range l.keys {
			raw, ok := l.accessors.Lookup(key)
			if !ok || raw == nil {
				continue
			}
			var v any
			if err := scene.Safe(func() error { v = unwrap(raw); return nil }); err != nil {
				continue
			}
			if h, ok := v.(scene.Handle); ok && h != nil {
				return h, StrategyAccessor, true
			}
		}
	}
	if l.components != nil {
		for _, root := range l.components() {
			for ref := range l.walker.WalkComponents(root) {
				if h, ok := l.sceneOf(ref); ok {
					return h, StrategyComponent, true
				}
			}
		}
	}
	return nil, "", false
}

// sceneOf returns the scene ref is, or the scene it is parented under.
func (l *SceneLocator) sceneOf(ref any) (h scene.Handle, found bool) {
	_ = scene.Safe(func() error {
		cur := ref
		for depth := 0; cur != nil && depth <= l.walker.MaxDepth; depth++ {
			if m, ok := cur.(scene.SceneMarker); ok && m.IsScene() {
				h, found = cur.(scene.Handle)
				return nil
			}
			p, ok := cur.(scene.Parented)
			if !ok {
				return nil
			}
			cur = p.Parent()
		}
		return nil
	})
	return h, found
}
