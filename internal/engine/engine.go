// Package engine wires discovery, tracking, collectibles and scheduling into
// the surface the host and UI collaborators talk to. All engine state lives
// on one loop; the exported methods are safe to call from other goroutines
// unless noted.
package engine

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/zeusync/scenehook/internal/config"
	"github.com/zeusync/scenehook/internal/core/collectibles"
	"github.com/zeusync/scenehook/internal/core/cosmetics"
	"github.com/zeusync/scenehook/internal/core/discovery"
	"github.com/zeusync/scenehook/internal/core/events/bus"
	"github.com/zeusync/scenehook/internal/core/loop"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
	"github.com/zeusync/scenehook/internal/core/scheduler"
	"github.com/zeusync/scenehook/internal/core/tracking"
)

var ErrClosed = errors.New("engine: closed")

type Engine struct {
	cfg  config.Config
	host Host
	log  log.Log
	bus  bus.EventBus
	loop *loop.Loop

	binding   *tracking.Binding
	state     *tracking.State
	provider  *tracking.Provider
	sync      *tracking.SyncLoop
	walker    *discovery.Walker
	resolver  *discovery.Resolver
	locator   *discovery.SceneLocator
	field     *collectibles.Field
	projector *collectibles.Projector
	recolor   *cosmetics.Recolorer
	sched     *scheduler.Scheduler

	// loop-owned
	scene     scene.Handle
	sceneKey  uint64
	sceneVia  string
	recolored uint64
	refresh   loop.Handle

	mu      sync.RWMutex
	diag    Diagnostics
	minimap collectibles.Minimap
	started bool
	closed  bool
}

// New builds an engine on l. Nothing runs until Start.
func New(cfg config.Config, host Host, logger log.Log, eventBus bus.EventBus, l *loop.Loop) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	if eventBus == nil {
		eventBus = bus.New()
	}
	e := &Engine{
		cfg:  cfg,
		host: host,
		log:  logger.With(log.Component("engine")),
		bus:  eventBus,
		loop: l,
	}

	d := cfg.Discovery
	weights := discovery.DefaultWeights()
	weights.Threshold = d.Threshold
	scorer := discovery.NewScorer(weights)
	e.walker = discovery.NewWalker(d.MaxDepth, d.MaxNodes, logger)

	e.binding = tracking.NewBinding()
	e.state = &tracking.State{}
	e.provider = tracking.NewProvider(e.binding, cfg.Tracking.ErrorLogCap, logger)
	e.provider.SetMath(host.Math)
	e.sync = tracking.NewSyncLoop(tracking.SyncConfig{
		Interval:   cfg.Tracking.PublishInterval,
		StaleAfter: cfg.Tracking.StaleAfter,
	}, e.provider, e.binding, e.state, logger)

	structural := discovery.NewStructuralStrategy(e.currentScene, e.walker, scorer)
	e.resolver = discovery.NewResolver(e.binding, e.state, eventBus, logger,
		discovery.NewAccessorStrategy(host.Accessors, d.AccessorKeys, d.AccessorConfidence),
		structural,
		discovery.NewComponentStrategy(host.Components, discovery.NewWalker(d.MaxDepth, d.MaxNodes, logger), scorer),
	)
	e.resolver.AddOnDemand(structural.Named(discovery.StrategyHook))
	e.locator = discovery.NewSceneLocator(host.Accessors, d.SceneKeys, host.Components, discovery.NewWalker(d.MaxDepth, d.MaxNodes, logger))

	c := cfg.Collectibles
	coins := collectibles.Spawn(SpawnConfig(c), collectibles.NewRand(c.Seed))
	factory := host.Factory
	if factory == nil {
		mf := collectibles.DefaultMeshFactory()
		mf.Scale = c.RenderScale
		factory = mf
	}
	e.field = collectibles.NewField(collectibles.Config{
		PickupRadius:   c.PickupRadius,
		PickupInterval: c.PickupInterval,
		RenderScale:    c.RenderScale,
	}, coins, factory, logger)
	e.field.SetNotifier(e)
	e.field.SetMarkers(host.Markers)
	e.projector = collectibles.NewProjector(collectibles.MinimapConfig{
		MapSize: cfg.Minimap.MapSize,
		Width:   cfg.Minimap.Width,
		Height:  cfg.Minimap.Height,
	})

	if cfg.Cosmetics.Enabled {
		e.recolor = cosmetics.NewRecolorer(cosmetics.Config{
			Color:     cfg.Cosmetics.Color,
			Emissive:  cfg.Cosmetics.Emissive,
			Intensity: cfg.Cosmetics.Intensity,
			Skip:      cfg.Cosmetics.Skip,
		}, discovery.NewWalker(d.MaxDepth, d.MaxNodes, logger), logger)
	}

	e.sync.AddConsumer(e.field)
	e.sync.AddConsumer(tracking.ConsumerFunc(e.project))
	e.sync.OnStale(e.onStale)

	e.sched = scheduler.New(l, eventBus, logger)
	e.addProbes()
	return e, nil
}

// SpawnConfig maps the collectibles section onto placement parameters.
func SpawnConfig(c config.CollectiblesConfig) collectibles.SpawnConfig {
	return collectibles.SpawnConfig{
		Count:         c.Count,
		NearCount:     c.NearCount,
		NearMinRadius: c.NearMinRadius,
		NearSpread:    c.NearSpread,
		NearJitter:    c.NearJitter,
		Radius:        c.SpawnRadius,
		MinDistance:   c.MinDistance,
		Attempts:      c.Attempts,
		GroundOffset:  c.GroundOffset,
	}
}

func (e *Engine) addProbes() {
	s := e.cfg.Scheduler
	e.sched.Add(scheduler.Probe{
		Name:        "fast",
		Interval:    s.Fast.Interval,
		MaxAttempts: s.Fast.MaxAttempts,
		Done:        e.resolver.Resolved,
		Work:        e.discover,
	})
	e.sched.Add(scheduler.Probe{
		Name:        "slow",
		Interval:    s.Slow.Interval,
		MaxAttempts: s.Slow.MaxAttempts,
		Done:        e.resolver.Resolved,
		Work:        e.discover,
	})
	e.sched.Add(scheduler.Probe{
		Name:        "attach",
		Interval:    s.Attach.Interval,
		MaxAttempts: s.Attach.MaxAttempts,
		Done:        e.field.Attached,
		Work:        e.attach,
	})
	for i, hook := range e.host.Hooks {
		e.sched.Add(scheduler.Probe{
			Name:        "hook-" + strconv.Itoa(i),
			Source:      hook,
			MaxAttempts: s.EventMaxAttempts,
			Done:        func() bool { return e.resolver.Resolved() && e.field.Attached() },
			Work: func(now time.Time) bool {
				e.ensureScene(now)
				resolved := e.resolver.ResolveVia(discovery.StrategyHook, now)
				attached := e.attach(now)
				return resolved && attached
			},
		})
	}
	if e.recolor != nil {
		e.sched.Add(scheduler.Probe{
			Name:        "cosmetics",
			Interval:    e.cfg.Cosmetics.Probe.Interval,
			MaxAttempts: e.cfg.Cosmetics.Probe.MaxAttempts,
			Done:        e.recoloredCurrent,
			Work:        e.applyCosmetics,
		})
	}
}

// Start begins the sync loop and every probe.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started || e.closed {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.loop.Post(func() {
		now := e.loop.Now()
		e.sync.Start(e.loop)
		e.sched.Start()
		e.refresh = e.loop.Every(e.cfg.Server.SnapshotInterval, e.refreshDiagnostics)
		e.discover(now)
		e.attach(now)
		e.refreshDiagnostics(now)
	})
	e.log.Info("engine started",
		log.Int("collectibles", e.cfg.Collectibles.Count),
		log.Int("hooks", len(e.host.Hooks)),
	)
}

// Close stops all engine work and removes live coins from the scene. Must not
// be called from a loop callback.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	e.loop.Do(func() {
		e.sched.Stop()
		e.sync.Stop()
		e.refresh.Cancel()
		removed := e.field.Teardown()
		e.refreshDiagnostics(e.loop.Now())
		e.log.Info("engine closed", log.Int("removed", removed))
	})
	return nil
}

// AnnounceScene hands the engine the host scene and the vector utility. The
// scene is adopted on the next loop step.
func (e *Engine) AnnounceScene(h scene.Handle, vm scene.VectorMath) {
	if h == nil {
		return
	}
	e.loop.Post(func() {
		now := e.loop.Now()
		e.adoptScene(h, vm, "announce", now)
		e.attach(now)
	})
}

// SetPlayerPositionGetter registers a host getter that takes precedence over
// discovery. Nil unregisters.
func (e *Engine) SetPlayerPositionGetter(fn tracking.Getter) {
	e.provider.SetGetter(fn)
}

// SetPlayerPosition pushes a host position. Non-finite x or z is ignored.
func (e *Engine) SetPlayerPosition(x, y, z float64) bool {
	return e.provider.Push(scene.Sample{X: x, Y: y, Z: z})
}

// AttachCollectibles adopts h and attaches every pending coin to it,
// returning how many were attached. Must not be called from a loop callback.
func (e *Engine) AttachCollectibles(h scene.Handle, vm scene.VectorMath) int {
	if h == nil {
		return 0
	}
	n := 0
	e.loop.Do(func() {
		now := e.loop.Now()
		e.adoptScene(h, vm, "manual", now)
		n = e.attachCount(now)
		e.refreshDiagnostics(now)
	})
	return n
}

// Diagnostics returns the latest snapshot.
func (e *Engine) Diagnostics() Diagnostics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d := e.diag
	d.Probes = append([]scheduler.Status(nil), e.diag.Probes...)
	return d
}

// Minimap returns the latest projected minimap.
func (e *Engine) Minimap() collectibles.Minimap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	m := e.minimap
	m.Markers = append([]collectibles.Marker(nil), e.minimap.Markers...)
	return m
}

// Collectibles returns a copy of every coin.
func (e *Engine) Collectibles() []collectibles.View {
	return e.field.Views()
}

// Bus returns the event bus engine events are published on.
func (e *Engine) Bus() bus.EventBus { return e.bus }

// CoinCollected forwards pickups to the bus.
func (e *Engine) CoinCollected(v collectibles.View, collected int) {
	e.publish(bus.CoinCollected, v.CollectedAt, bus.CoinCollectedData{
		ID:        v.ID,
		X:         v.Position.X,
		Z:         v.Position.Z,
		Collected: collected,
	})
}

func (e *Engine) currentScene() scene.Handle {
	return e.scene
}

// ensureScene locates the scene when none was announced yet.
func (e *Engine) ensureScene(now time.Time) scene.Handle {
	if e.scene != nil {
		return e.scene
	}
	h, via, ok := e.locator.Locate()
	if !ok {
		return nil
	}
	e.adoptScene(h, nil, via, now)
	return e.scene
}

func (e *Engine) adoptScene(h scene.Handle, vm scene.VectorMath, via string, now time.Time) {
	if vm == nil {
		vm = e.host.Math
	}
	if vm != nil {
		e.provider.SetMath(vm)
	}
	key := scene.Identify(h)
	if e.scene != nil && key == e.sceneKey {
		return
	}
	replaced := e.scene != nil
	e.scene, e.sceneKey, e.sceneVia = h, key, via
	e.log.Info("scene ready", log.String("via", via), log.Bool("replaced", replaced))
	e.publish(bus.SceneReady, now, bus.SceneReadyData{Identity: key, HasMath: vm != nil, Replaced: replaced})
	if replaced {
		e.sched.Rearm()
	}
}

func (e *Engine) discover(now time.Time) bool {
	e.ensureScene(now)
	return e.resolver.Resolve(now)
}

func (e *Engine) attach(now time.Time) bool {
	e.attachCount(now)
	return e.field.Attached()
}

func (e *Engine) attachCount(now time.Time) int {
	h := e.ensureScene(now)
	if h == nil {
		return 0
	}
	n, err := e.field.Attach(h)
	if err != nil {
		e.log.Debug("some collectibles not attached", log.Error(err))
	}
	if n > 0 {
		e.publish(bus.CoinsAttached, now, bus.CoinsAttachedData{Attached: n, Total: e.field.Stats().Total})
	}
	return n
}

func (e *Engine) recoloredCurrent() bool {
	t, ok := e.binding.Current()
	return ok && t.Key == e.recolored
}

func (e *Engine) applyCosmetics(now time.Time) bool {
	t, ok := e.binding.Current()
	if !ok {
		return false
	}
	n := e.recolor.Apply(t.Node)
	if n == 0 {
		return false
	}
	e.recolored = t.Key
	e.publish(bus.CosmeticsApplied, now, bus.CosmeticsAppliedData{Meshes: n})
	return true
}

func (e *Engine) onStale(failures int) {
	now := e.loop.Now()
	if e.resolver.Invalidate(failures, now) {
		e.sched.Rearm()
	}
}

func (e *Engine) project(now time.Time, player scene.Sample) {
	m := e.projector.Project(player, e.field.Views())
	e.mu.Lock()
	e.minimap = m
	e.mu.Unlock()
}

func (e *Engine) refreshDiagnostics(now time.Time) {
	snap := e.state.Snapshot()
	d := Diagnostics{
		Collectibles:   e.field.Stats(),
		LastStrategy:   snap.LastStrategy,
		Position:       snap.Position,
		HasPosition:    snap.HasPosition,
		Tracking:       snap,
		SceneReady:     e.scene != nil,
		SceneVia:       e.sceneVia,
		Probes:         e.sched.Status(),
		ProviderErrors: e.provider.Errors(),
		Resolutions:    e.resolver.Announced(),
		Walk:           e.walker.Last(),
		UpdatedAt:      now,
	}
	if t, ok := e.binding.Current(); ok {
		d.Target = &TargetInfo{
			Name:       t.Name(),
			Strategy:   t.Strategy,
			Score:      t.Score,
			ResolvedAt: t.ResolvedAt,
			Confirmed:  e.binding.Confirmed(),
		}
	}
	e.mu.Lock()
	e.diag = d
	e.mu.Unlock()
}

func (e *Engine) publish(typ string, now time.Time, data any) {
	if err := e.bus.Publish(bus.NewEvent(typ, "engine", now, data)); err != nil {
		e.log.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
