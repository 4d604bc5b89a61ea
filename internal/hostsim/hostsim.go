// Package hostsim is a simulated host application: it owns a scene graph,
// walks a rigged player around it every frame and now and then rebuilds the
// player the way a host framework re-creates objects on reload.
package hostsim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/zeusync/scenehook/internal/config"
	"github.com/zeusync/scenehook/internal/core/loop"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
	"github.com/zeusync/scenehook/internal/engine"
)

type Host struct {
	cfg      config.HostConfig
	log      log.Log
	rng      *rand.Rand
	registry *scene.Registry
	commits  scene.Hook

	scene  *scene.Object
	player *scene.Object
	app    *component

	angle    float64
	last     time.Time
	rebuilds int

	mu      sync.Mutex
	markers map[int]bool
}

func New(cfg config.HostConfig, logger log.Log) *Host {
	if logger == nil {
		logger = log.NewNop()
	}
	h := &Host{
		cfg:      cfg,
		log:      logger.With(log.Component("hostsim")),
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1)),
		registry: scene.NewRegistry(),
		markers:  make(map[int]bool),
	}
	h.scene = h.buildScene()
	h.player = buildPlayer(h.pathPoint(0))
	_ = h.scene.Add(h.player)

	h.registry.Set("getScene", func() scene.Handle { return h.scene })
	h.app = &component{name: "App", child: &component{
		name: "Canvas",
		refs: func() []any { return []any{h.scene} },
		child: &component{
			name: "PlayerController",
			refs: func() []any { return []any{map[string]any{"speed": cfg.PlayerSpeed}, h.player} },
		},
		sibling: &component{name: "HUD", refs: func() []any { return []any{"score"} }},
	}}
	return h
}

func (h *Host) Scene() *scene.Object          { return h.scene }
func (h *Host) Player() *scene.Object         { return h.player }
func (h *Host) Accessors() *scene.Registry    { return h.registry }
func (h *Host) Commits() scene.Notifier       { return &h.commits }
func (h *Host) Components() []scene.Component { return []scene.Component{h.app} }
func (h *Host) Rebuilds() int                 { return h.rebuilds }

// Bindings exposes the host surfaces to an engine.
func (h *Host) Bindings() engine.Host {
	return engine.Host{
		Accessors:  h.registry,
		Components: h.Components,
		Hooks:      []scene.Notifier{&h.commits},
		Math:       scene.Math{},
		Markers:    h,
	}
}

// Attach drives the host from l: the player moves every frame and is
// rebuilt every RebuildEvery.
func (h *Host) Attach(l *loop.Loop) {
	h.last = l.Now()
	var frame loop.Func
	frame = func(now time.Time) {
		h.Step(now)
		l.RequestFrame(frame)
	}
	l.RequestFrame(frame)
	if h.cfg.RebuildEvery > 0 {
		l.Every(h.cfg.RebuildEvery, func(time.Time) { h.Rebuild() })
	}
}

// Step advances the player along its circular path.
func (h *Host) Step(now time.Time) {
	dt := now.Sub(h.last).Seconds()
	h.last = now
	if dt <= 0 || h.cfg.PathRadius <= 0 {
		return
	}
	h.angle += h.cfg.PlayerSpeed * dt / h.cfg.PathRadius
	h.player.SetPosition(h.pathPoint(h.angle))
	h.player.SetRotationY(-h.angle)
}

// Rebuild replaces the player object with a fresh one at the same spot and
// disposes the old one.
func (h *Host) Rebuild() {
	old := h.player
	next := buildPlayer(h.pathPoint(h.angle))
	_ = h.scene.Remove(old)
	old.Dispose()
	_ = h.scene.Add(next)
	h.player = next
	h.rebuilds++
	h.log.Debug("player rebuilt", log.Int("rebuilds", h.rebuilds))
	h.commits.Fire()
}

// Teleport moves the player off its path.
func (h *Host) Teleport(p scene.Vec3) {
	h.player.SetPosition(p)
	h.commits.Fire()
}

func (h *Host) pathPoint(angle float64) scene.Vec3 {
	return scene.Vec3{X: h.cfg.PathRadius * math.Cos(angle), Z: h.cfg.PathRadius * math.Sin(angle)}
}

func (h *Host) buildScene() *scene.Object {
	root := scene.NewScene()
	_ = root.Add(scene.NewMesh("Terrain", scene.Vec3{}, scene.Material{Color: "#3a5f0b", Roughness: 1}))
	_ = root.Add(scene.NewObject("DirectionalLight", "DirectionalLight"))
	for i := 0; i < h.cfg.Rocks; i++ {
		r := scene.NewMesh(fmt.Sprintf("Rock_%d", i), h.scatter(40), scene.Material{Color: "#777777", Roughness: 0.9})
		_ = r.Add(scene.NewMesh("moss", scene.Vec3{Y: 0.5}, scene.Material{Color: "#2f4f2f"}))
		_ = r.Add(scene.NewMesh("pebble", scene.Vec3{X: 0.6}, scene.Material{Color: "#888888"}))
		_ = root.Add(r)
	}
	for i := 0; i < h.cfg.Trees; i++ {
		t := scene.NewGroup(fmt.Sprintf("Tree_%d", i), h.scatter(45))
		_ = t.Add(scene.NewMesh("trunk", scene.Vec3{Y: 1}, scene.Material{Color: "#5b3a1a"}))
		_ = t.Add(scene.NewMesh("leaves", scene.Vec3{Y: 3}, scene.Material{Color: "#2e8b57"}))
		_ = root.Add(t)
	}
	return root
}

func (h *Host) scatter(radius float64) scene.Vec3 {
	a := h.rng.Float64() * 2 * math.Pi
	r := 15 + h.rng.Float64()*(radius-15)
	return scene.Vec3{X: r * math.Cos(a), Z: r * math.Sin(a)}
}

// buildPlayer assembles a mixamo-style rigged character.
func buildPlayer(p scene.Vec3) *scene.Object {
	g := scene.NewGroup("Player_Armature", p)
	g.SetAnimations("Idle", "Walk", "Run")

	hips := scene.NewGroup("mixamorigHips", scene.Vec3{Y: 1})
	spine := scene.NewGroup("mixamorigSpine", scene.Vec3{Y: 0.3})
	_ = hips.Add(spine)
	for _, side := range []string{"Left", "Right"} {
		leg := scene.NewGroup("mixamorig"+side+"UpLeg", scene.Vec3{Y: -0.1})
		_ = leg.Add(scene.NewGroup("mixamorig"+side+"Foot", scene.Vec3{Y: -0.9}))
		_ = hips.Add(leg)
	}
	_ = g.Add(hips)

	skin := scene.Material{Color: "#c68642", Roughness: 0.6}
	for _, m := range []struct {
		name string
		mat  scene.Material
	}{
		{"Body", skin},
		{"Head", skin},
		{"Hands", skin},
		{"Pants", scene.Material{Color: "#1f2a44", Roughness: 0.8, NormalMap: "pants_normal"}},
		{"Jacket", scene.Material{Color: "#8b0000", Roughness: 0.7}},
		{"Shoes", scene.Material{Color: "#222222", Roughness: 0.4, Metalness: 0.1}},
		{"Hair", scene.Material{Color: "#2b1b0e"}},
		{"Eyes", scene.Material{Color: "#ffffff", Metalness: 0.2}},
		{"Belt", scene.Material{Color: "#3b2f2f", AOMap: "belt_ao"}},
		{"Backpack", scene.Material{Color: "#556b2f"}},
		{"Hat", scene.Material{Color: "#8b4513"}},
	} {
		_ = g.Add(scene.NewMesh(m.name, scene.Vec3{}, m.mat))
	}
	return g
}

// Remove implements the UI marker sink.
func (h *Host) Remove(id int) {
	h.mu.Lock()
	h.markers[id] = true
	h.mu.Unlock()
}

// RemovedMarkers reports how many markers the engine removed.
func (h *Host) RemovedMarkers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.markers)
}

type component struct {
	name    string
	refs    func() []any
	child   *component
	sibling *component
}

func (c *component) Child() scene.Component {
	if c.child == nil {
		return nil
	}
	return c.child
}

func (c *component) Sibling() scene.Component {
	if c.sibling == nil {
		return nil
	}
	return c.sibling
}

func (c *component) Refs() []any {
	if c.refs == nil {
		return nil
	}
	return c.refs()
}
