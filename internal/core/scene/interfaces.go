// Package scene defines the contracts the engine uses to look at an
// externally-owned scene graph. Host objects are opaque; every property is
// reached through a small capability interface checked with a type assertion,
// so a node may implement any subset.
package scene

// Node is any object found in the host graph.
type Node any

type Named interface {
	Name() string
}

type Typed interface {
	Type() string
}

type Positioned interface {
	Position() Vec3
}

type Parent interface {
	Children() []Node
}

// Tagged exposes free-form role metadata.
type Tagged interface {
	UserData() map[string]any
}

type Animated interface {
	Animations() []string
}

// WorldPositioner computes the node's world-space position into out.
type WorldPositioner interface {
	WorldPosition(out Vector) error
}

type Parented interface {
	Parent() Node
}

type Disposable interface {
	Dispose()
}

type Transformable interface {
	SetPosition(p Vec3)
	SetRotationY(rad float64)
	SetScale(s float64)
}

// Material is the subset of a surface material the engine edits.
type Material struct {
	Color             string  `json:"color"`
	Emissive          string  `json:"emissive"`
	EmissiveIntensity float64 `json:"emissive_intensity"`
	Roughness         float64 `json:"roughness"`
	Metalness         float64 `json:"metalness"`
	NormalMap         string  `json:"normal_map,omitempty"`
	AOMap             string  `json:"ao_map,omitempty"`
}

type Recolorable interface {
	Materials() []Material
	SetMaterial(i int, m Material) error
}

// Handle is the scene root.
type Handle interface {
	Parent
	// Traverse calls fn for the root and every descendant.
	Traverse(fn func(Node))
	Add(n Node) error
	Remove(n Node) error
}

// SceneMarker is implemented by objects that know whether they are a scene
// root, used when the root is only reachable through component refs.
type SceneMarker interface {
	IsScene() bool
}

// Identified nodes carry their own stable identity.
type Identified interface {
	ID() uint64
}

// Component is a node of the host UI-component tree, an alternate route to
// the scene graph objects it references.
type Component interface {
	Child() Component
	Sibling() Component
	Refs() []any
}

// Notifier is a host hook that fires on commits or structural mutations.
type Notifier interface {
	Subscribe(fn func()) (cancel func())
}

// Accessors are late-bound, globally reachable host values looked up by name.
type Accessors interface {
	Lookup(name string) (any, bool)
}
