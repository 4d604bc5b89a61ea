package engine

import (
	"github.com/zeusync/scenehook/internal/core/collectibles"
	"github.com/zeusync/scenehook/internal/core/scene"
)

// Host lists what the engine may consume from the host application. Every
// field is optional.
type Host struct {
	// Accessors are globally reachable late-bound values (player, scene).
	Accessors scene.Accessors
	// Components returns roots of the host UI-component tree.
	Components func() []scene.Component
	// Hooks fire on host commits or structural mutations.
	Hooks []scene.Notifier
	// Math is the host vector utility used until a scene announcement
	// brings one.
	Math scene.VectorMath
	// Factory builds coin renders. Defaults to in-memory meshes.
	Factory collectibles.Factory
	// Markers mirrors coins as UI markers.
	Markers collectibles.MarkerSink
}
