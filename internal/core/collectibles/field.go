package collectibles

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

// Notifier is the bookkeeping collaborator told about every pickup.
type Notifier interface {
	CoinCollected(c View, collected int)
}

// MarkerSink mirrors collectibles as UI markers.
type MarkerSink interface {
	Remove(id int)
}

type Config struct {
	PickupRadius   float64
	PickupInterval time.Duration
	// RenderScale is the resting scale the animation pulses around.
	RenderScale float64
}

// Stats are the collectible counters exposed as diagnostics.
type Stats struct {
	Total     int `json:"total"`
	Collected int `json:"collected"`
	Attached  int `json:"attached"`
	Spawned   int `json:"spawned"`
	Removed   int `json:"removed"`
}

// Field runs the collectible lifecycle. Mutating methods are called from the
// loop goroutine; Stats and Views may be called from anywhere.
type Field struct {
	cfg      Config
	factory  Factory
	notifier Notifier
	markers  MarkerSink
	log      log.Log
	errs     *log.Limiter

	mu        sync.RWMutex
	coins     []*Collectible
	scene     scene.Handle
	sceneKey  uint64
	collected int
	lastCheck time.Time
}

func NewField(cfg Config, coins []*Collectible, factory Factory, logger log.Log) *Field {
	if factory == nil {
		factory = DefaultMeshFactory()
	}
	if cfg.RenderScale == 0 {
		cfg.RenderScale = 1
	}
	return &Field{
		cfg:     cfg,
		factory: factory,
		coins:   coins,
		log:     logger.With(log.Component("collectibles")),
		errs:    log.Cap(10),
	}
}

func (f *Field) SetNotifier(n Notifier)  { f.notifier = n }
func (f *Field) SetMarkers(m MarkerSink) { f.markers = m }

// Attach adds every spawned collectible to h exactly once and returns how
// many were attached by this call. A collectible that fails stays Spawned and
// is retried by the next call. Attaching to a different scene drops the
// renders left on the previous one first.
func (f *Field) Attach(h scene.Handle) (int, error) {
	if h == nil {
		return 0, scene.ErrNoHandle
	}
	key := scene.Identify(h)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.scene != nil && f.sceneKey != key {
		dropped := f.detachAllLocked(Spawned)
		f.log.Info("scene replaced, re-attaching collectibles", log.Int("dropped", dropped))
	}
	f.scene, f.sceneKey = h, key

	var errs error
	attached := 0
	for _, c := range f.coins {
		if c.state != Spawned {
			continue
		}
		if err := f.attachLocked(h, c); err != nil {
			errs = errors.Join(errs, err)
			if f.errs.Allow() {
				f.log.Warn("attach failed", log.Int("id", c.id), log.Error(err))
			}
			continue
		}
		attached++
	}
	if attached > 0 {
		f.log.Info("collectibles attached", log.Int("attached", attached), log.Int("total", len(f.coins)))
	}
	return attached, errs
}

func (f *Field) attachLocked(h scene.Handle, c *Collectible) error {
	if c.render == nil {
		var node scene.Node
		err := scene.Safe(func() error {
			var err error
			node, err = f.factory.Build(c)
			return err
		})
		if err != nil {
			return fmt.Errorf("collectible %d: build: %w", c.id, err)
		}
		c.render = node
	}
	if err := scene.Safe(func() error { return h.Add(c.render) }); err != nil {
		return fmt.Errorf("collectible %d: add: %w", c.id, err)
	}
	c.state = Attached
	return nil
}

// Attached reports whether a scene is set and every live collectible is on it.
func (f *Field) Attached() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.scene == nil {
		return false
	}
	for _, c := range f.coins {
		if c.state == Spawned {
			return false
		}
	}
	return true
}

// SceneKey is the identity of the scene collectibles are attached to.
func (f *Field) SceneKey() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.sceneKey
}

// Consume runs a pickup check when the pickup interval elapsed and advances
// the animation.
func (f *Field) Consume(now time.Time, player scene.Sample) {
	f.mu.RLock()
	due := f.lastCheck.IsZero() || now.Sub(f.lastCheck) >= f.cfg.PickupInterval
	f.mu.RUnlock()
	if due {
		f.Check(now, player)
	}
	f.Animate(now)
}

// Check collects every attached collectible within the pickup radius of the
// player on the ground plane.
func (f *Field) Check(now time.Time, player scene.Sample) []View {
	f.mu.Lock()
	f.lastCheck = now
	var picked []View
	var totals []int
	for _, c := range f.coins {
		if c.state != Attached {
			continue
		}
		if scene.PlanarDistance(c.position, player) >= f.cfg.PickupRadius {
			continue
		}
		f.removeRenderLocked(c)
		c.state = Collected
		c.collectedAt = now
		f.collected++
		picked = append(picked, c.View())
		totals = append(totals, f.collected)
	}
	f.mu.Unlock()

	for i, v := range picked {
		f.log.Info("coin collected",
			log.Int("id", v.ID),
			log.Int("collected", totals[i]),
			log.Float64("x", v.Position.X),
			log.Float64("z", v.Position.Z),
		)
		if f.markers != nil {
			f.markers.Remove(v.ID)
		}
		if f.notifier != nil {
			f.notifier.CoinCollected(v, totals[i])
		}
	}
	return picked
}

// Animate spins and bobs attached renders.
func (f *Field) Animate(now time.Time) {
	t := float64(now.UnixMilli()) / 1000
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coins {
		if c.state != Attached {
			continue
		}
		tr, ok := c.render.(scene.Transformable)
		if !ok {
			continue
		}
		c.rotation += c.phase.RotationSpeed
		pos := c.position
		pos.Y += math.Sin(t*c.phase.BobSpeed+c.phase.BobOffset) * 0.15
		scale := f.cfg.RenderScale * (1 + math.Sin(t*2+c.phase.BobOffset)*0.05)
		_ = scene.Safe(func() error {
			tr.SetRotationY(c.rotation)
			tr.SetPosition(pos)
			tr.SetScale(scale)
			return nil
		})
	}
}

// Teardown detaches every live collectible. Collected ones stay Collected.
func (f *Field) Teardown() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.detachAllLocked(Removed)
	for _, c := range f.coins {
		if c.state == Spawned {
			c.state = Removed
		}
	}
	f.scene, f.sceneKey = nil, 0
	return n
}

// detachAllLocked removes attached renders and moves those collectibles to
// next.
func (f *Field) detachAllLocked(next State) int {
	n := 0
	for _, c := range f.coins {
		if c.state != Attached {
			continue
		}
		f.removeRenderLocked(c)
		c.state = next
		n++
	}
	return n
}

func (f *Field) removeRenderLocked(c *Collectible) {
	if c.render == nil {
		return
	}
	if f.scene != nil {
		if err := scene.Safe(func() error { return f.scene.Remove(c.render) }); err != nil && f.errs.Allow() {
			f.log.Debug("render already gone", log.Int("id", c.id), log.Error(err))
		}
	}
	if d, ok := c.render.(scene.Disposable); ok {
		_ = scene.Safe(func() error { d.Dispose(); return nil })
	}
	c.render = nil
}

func (f *Field) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Stats{Total: len(f.coins), Collected: f.collected}
	for _, c := range f.coins {
		switch c.state {
		case Attached:
			s.Attached++
		case Spawned:
			s.Spawned++
		case Removed:
			s.Removed++
		}
	}
	return s
}

// Views returns a copy of every collectible.
func (f *Field) Views() []View {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]View, len(f.coins))
	for i, c := range f.coins {
		out[i] = c.View()
	}
	return out
}
