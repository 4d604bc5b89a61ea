package scene

import "math"

// Vec3 is a position in host world units.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Sample is one position read of the player entity.
type Sample = Vec3

// Valid reports whether x and z are finite. Y never gates validity.
func (v Vec3) Valid() bool {
	return finite(v.X) && finite(v.Z)
}

// Sanitized returns v with a non-finite y replaced by 0.
func (v Vec3) Sanitized() Vec3 {
	if !finite(v.Y) {
		v.Y = 0
	}
	return v
}

// PlanarDistance is the distance between a and b on the ground plane.
func PlanarDistance(a, b Vec3) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Vector is a host-allocated mutable vector used as the output of world
// position computations.
type Vector interface {
	Set(x, y, z float64)
	Get() Vec3
}

// VectorMath is the host's vector utility.
type VectorMath interface {
	NewVector() Vector
}

// Math is the built-in VectorMath used when the host announces none.
type Math struct{}

func (Math) NewVector() Vector { return &vector{} }

type vector struct{ v Vec3 }

func (p *vector) Set(x, y, z float64) { p.v = Vec3{X: x, Y: y, Z: z} }
func (p *vector) Get() Vec3           { return p.v }
