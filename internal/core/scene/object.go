package scene

import (
	"math"
	"strings"
	"sync/atomic"
)

var objectIDs atomic.Uint64

// Object is an in-memory scene node implementing every capability. It is
// used by the simulated host, by coin renders and by tests. Objects are not
// safe for concurrent use; they belong to the loop goroutine.
type Object struct {
	id         uint64
	name       string
	typ        string
	position   Vec3
	rotationY  float64
	scale      float64
	parent     *Object
	children   []Node
	userData   map[string]any
	animations []string
	materials  []Material
	disposed   bool
}

var (
	_ Handle          = (*Object)(nil)
	_ Named           = (*Object)(nil)
	_ Typed           = (*Object)(nil)
	_ Positioned      = (*Object)(nil)
	_ Tagged          = (*Object)(nil)
	_ Animated        = (*Object)(nil)
	_ WorldPositioner = (*Object)(nil)
	_ Parented        = (*Object)(nil)
	_ Disposable      = (*Object)(nil)
	_ Transformable   = (*Object)(nil)
	_ Recolorable     = (*Object)(nil)
	_ SceneMarker     = (*Object)(nil)
	_ Identified      = (*Object)(nil)
)

// NewObject creates a detached node.
func NewObject(name, typ string) *Object {
	return &Object{
		id:    objectIDs.Add(1),
		name:  name,
		typ:   typ,
		scale: 1,
	}
}

// NewScene creates a scene root.
func NewScene() *Object {
	return NewObject("", "Scene")
}

// NewGroup creates a group node at p.
func NewGroup(name string, p Vec3) *Object {
	o := NewObject(name, "Group")
	o.position = p
	return o
}

// NewMesh creates a mesh node at p with one material.
func NewMesh(name string, p Vec3, m Material) *Object {
	o := NewObject(name, "Mesh")
	o.position = p
	o.materials = []Material{m}
	return o
}

func (o *Object) ID() uint64         { return o.id }
func (o *Object) Name() string       { return o.name }
func (o *Object) Type() string       { return o.typ }
func (o *Object) IsScene() bool      { return o.typ == "Scene" }
func (o *Object) Disposed() bool     { return o.disposed }
func (o *Object) Scale() float64     { return o.scale }
func (o *Object) RotationY() float64 { return o.rotationY }

// Position is the local position. A disposed object reports NaN.
func (o *Object) Position() Vec3 {
	if o.disposed {
		return Vec3{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	}
	return o.position
}

func (o *Object) SetName(name string) { o.name = name }

func (o *Object) SetPosition(p Vec3)       { o.position = p }
func (o *Object) SetRotationY(rad float64) { o.rotationY = rad }
func (o *Object) SetScale(s float64)       { o.scale = s }

func (o *Object) Parent() Node {
	if o.parent == nil {
		return nil
	}
	return o.parent
}

func (o *Object) Children() []Node {
	out := make([]Node, len(o.children))
	copy(out, o.children)
	return out
}

func (o *Object) UserData() map[string]any { return o.userData }

// SetUserData sets one metadata entry.
func (o *Object) SetUserData(key string, v any) {
	if o.userData == nil {
		o.userData = make(map[string]any)
	}
	o.userData[key] = v
}

func (o *Object) Animations() []string { return o.animations }

func (o *Object) SetAnimations(clips ...string) { o.animations = clips }

func (o *Object) Materials() []Material {
	out := make([]Material, len(o.materials))
	copy(out, o.materials)
	return out
}

func (o *Object) SetMaterial(i int, m Material) error {
	if i < 0 || i >= len(o.materials) {
		return ErrNotChild
	}
	o.materials[i] = m
	return nil
}

func (o *Object) Dispose() {
	o.disposed = true
}

// Add attaches n as the last child. An *Object already parented elsewhere is
// moved.
func (o *Object) Add(n Node) error {
	if n == nil {
		return ErrNilNode
	}
	if child, ok := n.(*Object); ok {
		for p := o; p != nil; p = p.parent {
			if p == child {
				return ErrCycle
			}
		}
		if child.parent != nil {
			_ = child.parent.Remove(child)
		}
		child.parent = o
	}
	o.children = append(o.children, n)
	return nil
}

func (o *Object) Remove(n Node) error {
	for i, c := range o.children {
		if c == n {
			o.children = append(o.children[:i], o.children[i+1:]...)
			if child, ok := n.(*Object); ok {
				child.parent = nil
			}
			return nil
		}
	}
	return ErrNotChild
}

// Clear detaches every child.
func (o *Object) Clear() {
	for _, c := range o.children {
		if child, ok := c.(*Object); ok {
			child.parent = nil
		}
	}
	o.children = nil
}

// Traverse visits o and its descendants depth-first. Children that are not
// *Object are visited but not descended into unless they implement Parent.
func (o *Object) Traverse(fn func(Node)) {
	fn(o)
	for _, c := range o.children {
		traverse(c, fn)
	}
}

func traverse(n Node, fn func(Node)) {
	if h, ok := n.(interface{ Traverse(func(Node)) }); ok {
		h.Traverse(fn)
		return
	}
	fn(n)
	if p, ok := n.(Parent); ok {
		for _, c := range p.Children() {
			traverse(c, fn)
		}
	}
}

// FindByName returns the first descendant whose name contains sub,
// case-insensitively.
func (o *Object) FindByName(sub string) *Object {
	sub = strings.ToLower(sub)
	var found *Object
	o.Traverse(func(n Node) {
		if found != nil {
			return
		}
		if obj, ok := n.(*Object); ok && strings.Contains(strings.ToLower(obj.name), sub) {
			found = obj
		}
	})
	return found
}

// WorldPosition composes parent translation, yaw and uniform scale.
func (o *Object) WorldPosition(out Vector) error {
	if o.disposed {
		return ErrDisposed
	}
	p := o.worldPosition()
	out.Set(p.X, p.Y, p.Z)
	return nil
}

func (o *Object) worldPosition() Vec3 {
	if o.parent == nil {
		return o.position
	}
	parentPos := o.parent.worldPosition()
	yaw := o.parent.worldRotationY()
	s := o.parent.worldScale()

	x, y, z := o.position.X*s, o.position.Y*s, o.position.Z*s
	sin, cos := math.Sincos(yaw)
	return Vec3{
		X: parentPos.X + x*cos + z*sin,
		Y: parentPos.Y + y,
		Z: parentPos.Z - x*sin + z*cos,
	}
}

func (o *Object) worldRotationY() float64 {
	if o.parent == nil {
		return o.rotationY
	}
	return o.parent.worldRotationY() + o.rotationY
}

func (o *Object) worldScale() float64 {
	if o.parent == nil {
		return o.scale
	}
	return o.parent.worldScale() * o.scale
}
