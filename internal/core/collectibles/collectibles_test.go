package collectibles

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func spawnConfig() SpawnConfig {
	return SpawnConfig{
		Count:         30,
		NearCount:     5,
		NearMinRadius: 3,
		NearSpread:    5,
		NearJitter:    0.5,
		Radius:        30,
		MinDistance:   5,
		Attempts:      50,
		GroundOffset:  3,
	}
}

func fieldConfig() Config {
	return Config{PickupRadius: 8, PickupInterval: 50 * time.Millisecond, RenderScale: 2}
}

func coinAt(id int, x, z float64) *Collectible {
	return &Collectible{id: id, position: scene.Vec3{X: x, Y: 3, Z: z}, state: Spawned}
}

type notes struct {
	views  []View
	totals []int
}

func (n *notes) CoinCollected(v View, total int) {
	n.views = append(n.views, v)
	n.totals = append(n.totals, total)
}

type markers struct{ removed []int }

func (m *markers) Remove(id int) { m.removed = append(m.removed, id) }

// grumpyScene rejects the first n adds.
type grumpyScene struct {
	*scene.Object
	failures int
}

func (g *grumpyScene) Add(n scene.Node) error {
	if g.failures > 0 {
		g.failures--
		return errors.New("scene locked")
	}
	return g.Object.Add(n)
}

func TestSpawnPlacement(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		cfg := spawnConfig()
		coins := Spawn(cfg, NewRand(seed))
		require.Len(t, coins, cfg.Count)

		ids := map[int]bool{}
		for i, c := range coins {
			assert.False(t, ids[c.ID()], "ids are unique")
			ids[c.ID()] = true
			assert.Equal(t, cfg.GroundOffset, c.Position().Y)
			assert.Equal(t, Spawned, c.State())

			ph := c.Phase()
			assert.GreaterOrEqual(t, ph.RotationSpeed, 0.02)
			assert.Less(t, ph.RotationSpeed, 0.03)
			assert.GreaterOrEqual(t, ph.BobSpeed, 0.5)
			assert.Less(t, ph.BobSpeed, 1.0)

			r := math.Hypot(c.Position().X, c.Position().Z)
			if i < cfg.NearCount {
				assert.True(t, c.Placement().Near)
				assert.GreaterOrEqual(t, r, cfg.NearMinRadius)
				assert.LessOrEqual(t, r, cfg.NearMinRadius+cfg.NearSpread)
				continue
			}
			assert.LessOrEqual(t, r, cfg.Radius)
			if c.Placement().Exhausted {
				assert.Equal(t, cfg.Attempts, c.Placement().Attempts)
				continue
			}
			for _, prev := range coins[:i] {
				assert.GreaterOrEqual(t, scene.PlanarDistance(prev.Position(), c.Position()), cfg.MinDistance)
			}
		}
	}
}

func TestSpawnExhaustsBudgetInTightSpace(t *testing.T) {
	cfg := spawnConfig()
	cfg.Radius = 4
	cfg.MinDistance = 50
	cfg.Attempts = 3
	coins := Spawn(cfg, NewRand(7))
	require.Len(t, coins, cfg.Count)
	for _, c := range coins[cfg.NearCount:] {
		assert.True(t, c.Placement().Exhausted)
		assert.Equal(t, 3, c.Placement().Attempts)
	}
}

func TestScenarioAPickupInOneCheck(t *testing.T) {
	root := scene.NewScene()
	f := NewField(fieldConfig(), []*Collectible{coinAt(1, 3, 4)}, nil, log.NewNop())
	n := &notes{}
	mk := &markers{}
	f.SetNotifier(n)
	f.SetMarkers(mk)

	attached, err := f.Attach(root)
	require.NoError(t, err)
	require.Equal(t, 1, attached)
	render := f.Views()
	require.Equal(t, Attached, render[0].State)
	coinNode := root.Children()[0].(*scene.Object)

	picked := f.Check(epoch, scene.Sample{})
	require.Len(t, picked, 1)
	assert.Equal(t, Collected, f.Views()[0].State)
	assert.Empty(t, root.Children())
	assert.True(t, coinNode.Disposed())
	assert.Equal(t, []int{1}, mk.removed)
	assert.Equal(t, []int{1}, n.totals)
	assert.Equal(t, 1, f.Stats().Collected)
}

func TestPickupUsesPlanarDistance(t *testing.T) {
	f := NewField(fieldConfig(), []*Collectible{coinAt(1, 8, 0), coinAt(2, 1, 1)}, nil, log.NewNop())
	_, err := f.Attach(scene.NewScene())
	require.NoError(t, err)

	picked := f.Check(epoch, scene.Sample{Y: 500})
	require.Len(t, picked, 1)
	assert.Equal(t, 2, picked[0].ID, "distance 8 is not below the radius")
}

func TestAttachIsIdempotent(t *testing.T) {
	root := scene.NewScene()
	f := NewField(fieldConfig(), Spawn(spawnConfig(), NewRand(3)), nil, log.NewNop())

	n, err := f.Attach(root)
	require.NoError(t, err)
	assert.Equal(t, 30, n)
	n, err = f.Attach(root)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, root.Children(), 30)
	assert.Equal(t, Stats{Total: 30, Attached: 30}, f.Stats())
	assert.True(t, f.Attached())
}

func TestAttachFailureLeavesSpawned(t *testing.T) {
	g := &grumpyScene{Object: scene.NewScene(), failures: 1}
	f := NewField(fieldConfig(), []*Collectible{coinAt(1, 20, 20), coinAt(2, -20, -20)}, nil, log.NewNop())

	n, err := f.Attach(g)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Spawned, f.Views()[0].State)
	assert.False(t, f.Attached())

	n, err = f.Attach(g)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.Attached())
	assert.Len(t, g.Children(), 2)
}

func TestFactoryPanicIsContained(t *testing.T) {
	boom := FactoryFunc(func(*Collectible) (scene.Node, error) { panic("no geometry") })
	f := NewField(fieldConfig(), []*Collectible{coinAt(1, 0, 0)}, boom, log.NewNop())
	_, err := f.Attach(scene.NewScene())
	assert.ErrorIs(t, err, scene.ErrHostPanic)
	assert.Equal(t, Spawned, f.Views()[0].State)
}

func TestSceneReplacementReattaches(t *testing.T) {
	first, second := scene.NewScene(), scene.NewScene()
	f := NewField(fieldConfig(), []*Collectible{coinAt(1, 20, 0), coinAt(2, 0, 20)}, nil, log.NewNop())
	_, err := f.Attach(first)
	require.NoError(t, err)
	f.Check(epoch, scene.Sample{X: 20})
	require.Equal(t, 1, f.Stats().Collected)

	n, err := f.Attach(second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, first.Children())
	assert.Len(t, second.Children(), 1)
	assert.Equal(t, scene.Identify(second), f.SceneKey())
	assert.Equal(t, Collected, f.Views()[0].State, "collected is terminal")
}

func TestCollectedIsMonotonic(t *testing.T) {
	f := NewField(fieldConfig(), []*Collectible{coinAt(1, 0, 0), coinAt(2, 30, 0)}, nil, log.NewNop())
	root := scene.NewScene()
	_, err := f.Attach(root)
	require.NoError(t, err)

	last := 0
	track := func() {
		s := f.Stats()
		assert.GreaterOrEqual(t, s.Collected, last)
		last = s.Collected
	}
	f.Check(epoch, scene.Sample{})
	track()
	f.Check(epoch, scene.Sample{})
	track()
	_, _ = f.Attach(root)
	track()
	assert.Equal(t, Collected, f.Views()[0].State)
	f.Teardown()
	track()
	assert.Equal(t, Collected, f.Views()[0].State)
	assert.Equal(t, Removed, f.Views()[1].State)
	assert.Equal(t, 1, last)
}

func TestConsumeRespectsPickupInterval(t *testing.T) {
	f := NewField(fieldConfig(), []*Collectible{coinAt(1, 0, 0)}, nil, log.NewNop())
	root := scene.NewScene()
	_, err := f.Attach(root)
	require.NoError(t, err)

	far := scene.Sample{X: 100}
	f.Consume(epoch, far)
	f.Consume(epoch.Add(16*time.Millisecond), scene.Sample{})
	assert.Zero(t, f.Stats().Collected, "check not due yet")
	f.Consume(epoch.Add(50*time.Millisecond), scene.Sample{})
	assert.Equal(t, 1, f.Stats().Collected)
}

func TestAnimateMovesRender(t *testing.T) {
	c := coinAt(1, 5, 5)
	c.phase = Phase{RotationSpeed: 0.02, BobSpeed: 1}
	f := NewField(fieldConfig(), []*Collectible{c}, nil, log.NewNop())
	root := scene.NewScene()
	_, err := f.Attach(root)
	require.NoError(t, err)
	node := root.Children()[0].(*scene.Object)

	f.Animate(epoch)
	f.Animate(epoch.Add(time.Second))
	assert.InDelta(t, 0.04, node.RotationY(), 1e-9)
	assert.InDelta(t, 3.0, node.Position().Y, 0.15)
	assert.InDelta(t, 2.0, node.Scale(), 0.1)
	assert.Equal(t, 5.0, node.Position().X)
}

func TestProjector(t *testing.T) {
	p := NewProjector(MinimapConfig{MapSize: 60, Width: 200, Height: 200})
	views := []View{
		{ID: 1, Position: scene.Vec3{X: 13, Z: 20}, State: Attached},
		{ID: 2, Position: scene.Vec3{X: 10, Z: 60}, State: Spawned},
		{ID: 3, Position: scene.Vec3{X: 10, Z: 20}, State: Collected},
	}
	m := p.Project(scene.Sample{X: 10, Z: 20}, views)

	require.Len(t, m.Markers, 2)
	assert.Equal(t, 100.0, m.CenterX)
	assert.InDelta(t, 200.0/60, m.Scale, 1e-9)
	assert.InDelta(t, 100+3*200.0/60, m.Markers[0].X, 1e-9)
	assert.InDelta(t, 100.0, m.Markers[0].Y, 1e-9)
	assert.True(t, m.Markers[0].Visible)
	assert.False(t, m.Markers[1].Visible, "hidden, not removed")
	assert.Less(t, m.Markers[1].Y, 0.0, "+z is up the map")
	assert.Equal(t, 1, m.Visible)
}
