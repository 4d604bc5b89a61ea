package collectibles

import (
	"fmt"

	"github.com/zeusync/scenehook/internal/core/scene"
)

// Factory builds the render node for a collectible.
type Factory interface {
	Build(c *Collectible) (scene.Node, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(c *Collectible) (scene.Node, error)

func (f FactoryFunc) Build(c *Collectible) (scene.Node, error) { return f(c) }

// MeshFactory builds in-memory coin meshes.
type MeshFactory struct {
	Scale    float64
	Material scene.Material
}

func DefaultMeshFactory() MeshFactory {
	return MeshFactory{
		Scale: 2,
		Material: scene.Material{
			Color:             "#ffd700",
			Emissive:          "#ffaa00",
			EmissiveIntensity: 0.5,
			Roughness:         0.3,
			Metalness:         0.9,
		},
	}
}

func (f MeshFactory) Build(c *Collectible) (scene.Node, error) {
	m := scene.NewMesh(fmt.Sprintf("coin_%d", c.id), c.position, f.Material)
	m.SetScale(f.Scale)
	m.SetRotationY(c.phase.BaseRotation)
	m.SetUserData("collectible", c.id)
	return m, nil
}
