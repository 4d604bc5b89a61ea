// Package cosmetics recolors the player model's materials.
package cosmetics

import (
	"strings"

	"github.com/zeusync/scenehook/internal/core/discovery"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

type Config struct {
	Color     string
	Emissive  string
	Intensity float64
	// Skip lists name fragments whose meshes keep their material, matched
	// against the mesh and its parent.
	Skip []string
}

type Recolorer struct {
	cfg    Config
	walker *discovery.Walker
	log    log.Log
}

func NewRecolorer(cfg Config, walker *discovery.Walker, logger log.Log) *Recolorer {
	skip := make([]string, len(cfg.Skip))
	for i, s := range cfg.Skip {
		skip[i] = strings.ToLower(s)
	}
	cfg.Skip = skip
	return &Recolorer{cfg: cfg, walker: walker, log: logger.With(log.Component("cosmetics"))}
}

// Apply recolors every recolorable node under root and returns how many
// meshes changed. Surface detail of the previous material is kept.
func (r *Recolorer) Apply(root scene.Node) int {
	if root == nil {
		return 0
	}
	changed := 0
	for n := range r.walker.Walk(root) {
		rc, ok := n.(scene.Recolorable)
		if !ok || r.skipped(n) {
			continue
		}
		err := scene.Safe(func() error {
			mats := rc.Materials()
			for i, old := range mats {
				if err := rc.SetMaterial(i, r.recolor(old)); err != nil {
					return err
				}
			}
			if len(mats) > 0 {
				changed++
			}
			return nil
		})
		if err != nil {
			r.log.Warn("recolor failed", log.String("name", nameOf(n)), log.Error(err))
		}
	}
	if changed > 0 {
		r.log.Info("player recolored", log.Int("meshes", changed), log.String("color", r.cfg.Color))
	}
	return changed
}

func (r *Recolorer) recolor(old scene.Material) scene.Material {
	return scene.Material{
		Color:             r.cfg.Color,
		Emissive:          r.cfg.Emissive,
		EmissiveIntensity: r.cfg.Intensity,
		Roughness:         old.Roughness,
		Metalness:         old.Metalness,
		NormalMap:         old.NormalMap,
		AOMap:             old.AOMap,
	}
}

func (r *Recolorer) skipped(n scene.Node) bool {
	names := []string{nameOf(n)}
	if p, ok := n.(scene.Parented); ok {
		var parent scene.Node
		_ = scene.Safe(func() error { parent = p.Parent(); return nil })
		names = append(names, nameOf(parent))
	}
	for _, name := range names {
		name = strings.ToLower(name)
		for _, s := range r.cfg.Skip {
			if s != "" && strings.Contains(name, s) {
				return true
			}
		}
	}
	return false
}

func nameOf(n scene.Node) string {
	named, ok := n.(scene.Named)
	if !ok {
		return ""
	}
	var name string
	_ = scene.Safe(func() error { name = named.Name(); return nil })
	return name
}
