package hostsim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenehook/internal/config"
	"github.com/zeusync/scenehook/internal/core/discovery"
	"github.com/zeusync/scenehook/internal/core/events/bus"
	"github.com/zeusync/scenehook/internal/core/loop"
	"github.com/zeusync/scenehook/internal/core/scene"
	"github.com/zeusync/scenehook/internal/engine"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPlayerScoresAboveScenery(t *testing.T) {
	h := New(config.Default().Host, nil)
	scorer := discovery.NewScorer(discovery.DefaultWeights())

	score, ok := scorer.Accept(h.Player())
	require.True(t, ok)
	for _, n := range h.Scene().Children() {
		if n == scene.Node(h.Player()) {
			continue
		}
		assert.Less(t, scorer.Score(n), score)
	}
}

func TestPlayerWalksPath(t *testing.T) {
	cfg := config.Default().Host
	h := New(cfg, nil)
	l := loop.New(epoch, nil)
	h.Attach(l)
	start := h.Player().Position()
	l.Advance(time.Second, cfg.Frame)

	p := h.Player().Position()
	assert.NotEqual(t, start, p)
	assert.InDelta(t, cfg.PathRadius, scene.PlanarDistance(p, scene.Vec3{}), 1e-6)
}

func TestRebuildDisposesPlayer(t *testing.T) {
	h := New(config.Default().Host, nil)
	var fired int
	h.Commits().Subscribe(func() { fired++ })

	old := h.Player()
	h.Rebuild()
	assert.True(t, old.Disposed())
	assert.Nil(t, old.Parent())
	assert.NotSame(t, old, h.Player())
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, h.Rebuilds())
}

func TestComponentTreeReachesPlayer(t *testing.T) {
	h := New(config.Default().Host, nil)
	w := discovery.NewWalker(32, 1000, nil)
	var found bool
	for ref := range w.WalkComponents(h.Components()[0]) {
		if ref == any(h.Player()) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEngineTracksSimulatedHost(t *testing.T) {
	cfg := config.Default()
	cfg.Host.RebuildEvery = 5 * time.Second
	h := New(cfg.Host, nil)
	l := loop.New(epoch, nil)
	b := bus.New()

	var mu sync.Mutex
	counts := map[string]int{}
	_, err := b.Subscribe(bus.AllEvents, func(ev bus.Event) error {
		mu.Lock()
		counts[ev.Type()]++
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	e, err := engine.New(cfg, h.Bindings(), nil, b, l)
	require.NoError(t, err)
	h.Attach(l)
	e.Start()
	l.Advance(12*time.Second, cfg.Host.Frame)

	d := e.Diagnostics()
	require.NotNil(t, d.Target)
	assert.Equal(t, "Player_Armature", d.Target.Name)
	assert.True(t, d.SceneReady)
	assert.Equal(t, 2, h.Rebuilds())
	assert.InDelta(t, h.Player().Position().X, d.Position.X, 1)
	assert.Positive(t, d.Collectibles.Collected)
	assert.Equal(t, d.Collectibles.Collected, h.RemovedMarkers())

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, counts[bus.PlayerResolved], 3)
	assert.Equal(t, d.Collectibles.Collected, counts[bus.CoinCollected])
	assert.GreaterOrEqual(t, counts[bus.CosmeticsApplied], 1)
}
