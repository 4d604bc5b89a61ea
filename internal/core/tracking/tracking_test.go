package tracking

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenehook/internal/core/loop"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// flaky is a host node whose position can be switched to garbage.
type flaky struct {
	pos   scene.Vec3
	panic bool
}

func (f *flaky) Position() scene.Vec3 {
	if f.panic {
		panic("disposed")
	}
	return f.pos
}

type brokenWorld struct{ scene.Vec3 }

func (b brokenWorld) Position() scene.Vec3             { return b.Vec3 }
func (b brokenWorld) WorldPosition(scene.Vector) error { return errors.New("detached") }

type recorder struct{ got []scene.Sample }

func (r *recorder) Consume(_ time.Time, s scene.Sample) { r.got = append(r.got, s) }

func newProvider(b *Binding) *Provider {
	return NewProvider(b, 5, log.NewNop())
}

func TestBindingReplacementRule(t *testing.T) {
	b := NewBinding()
	rock := scene.NewMesh("Rock", scene.Vec3{}, scene.Material{})
	player := scene.NewGroup("Player_Armature", scene.Vec3{})
	other := scene.NewGroup("Walker", scene.Vec3{})

	require.True(t, b.Offer(Target{Node: rock, Score: 40}))
	assert.False(t, b.Offer(Target{Node: player, Score: 40}), "equal score must not replace")
	assert.False(t, b.Offer(Target{Node: rock, Score: 400}), "same node is not re-announced")
	require.True(t, b.Offer(Target{Node: player, Score: 250}))

	cur, ok := b.Current()
	require.True(t, ok)
	b.Confirm(cur.Key)
	assert.True(t, b.Confirmed())
	assert.False(t, b.Offer(Target{Node: other, Score: 1000}), "confirmed target is kept")

	old, ok := b.Clear()
	require.True(t, ok)
	assert.Equal(t, scene.Node(player), old.Node)
	assert.False(t, b.Confirmed())
	assert.False(t, b.Offer(Target{}))
}

func TestProviderReadsBoundNode(t *testing.T) {
	b := NewBinding()
	p := newProvider(b)

	_, ok := p.Read()
	assert.False(t, ok, "nothing bound")

	root := scene.NewScene()
	g := scene.NewGroup("Player_Armature", scene.Vec3{X: 1, Y: 2, Z: 3})
	require.NoError(t, root.Add(g))
	require.True(t, b.Offer(Target{Node: g, Score: 100}))

	s, ok := p.Read()
	require.True(t, ok)
	assert.Equal(t, scene.Vec3{X: 1, Y: 2, Z: 3}, s)
	assert.Equal(t, SourceLocal, p.Source())

	p.SetMath(scene.Math{})
	root.SetPosition(scene.Vec3{X: 10})
	s, ok = p.Read()
	require.True(t, ok)
	assert.InDelta(t, 11.0, s.X, 1e-9)
	assert.Equal(t, SourceWorld, p.Source())
}

func TestProviderRejectsInvalid(t *testing.T) {
	cases := map[string]scene.Node{
		"nan x":       &flaky{pos: scene.Vec3{X: math.NaN(), Z: 1}},
		"inf z":       &flaky{pos: scene.Vec3{X: 1, Z: math.Inf(1)}},
		"panics":      &flaky{panic: true},
		"no position": "just a string",
	}
	for name, node := range cases {
		t.Run(name, func(t *testing.T) {
			b := NewBinding()
			require.True(t, b.Offer(Target{Node: node, Score: 100, Key: 7}))
			p := newProvider(b)
			_, ok := p.Read()
			assert.False(t, ok)
		})
	}
}

func TestProviderFallsBackToLocalWhenWorldFails(t *testing.T) {
	b := NewBinding()
	require.True(t, b.Offer(Target{Node: brokenWorld{scene.Vec3{X: 4, Y: math.NaN(), Z: 5}}, Score: 50}))
	p := newProvider(b)
	p.SetMath(scene.Math{})

	s, ok := p.Read()
	require.True(t, ok)
	assert.Equal(t, scene.Vec3{X: 4, Y: 0, Z: 5}, s)
	assert.Equal(t, SourceLocal, p.Source())
}

func TestProviderSourcePriority(t *testing.T) {
	b := NewBinding()
	p := newProvider(b)

	require.False(t, p.Push(scene.Sample{X: math.NaN()}))
	require.True(t, p.Push(scene.Sample{X: 7, Z: 7}))
	s, _ := p.Read()
	assert.Equal(t, SourcePushed, p.Source())
	assert.Equal(t, 7.0, s.X)

	require.True(t, b.Offer(Target{Node: &flaky{pos: scene.Vec3{X: 1, Z: 1}}, Score: 100}))
	s, _ = p.Read()
	assert.Equal(t, SourceLocal, p.Source())
	assert.Equal(t, 1.0, s.X)

	p.SetGetter(func() (scene.Sample, bool) { return scene.Sample{X: 9, Z: 9}, true })
	s, _ = p.Read()
	assert.Equal(t, SourceGetter, p.Source())
	assert.Equal(t, 9.0, s.X)

	p.SetGetter(func() (scene.Sample, bool) { panic("host getter") })
	s, ok := p.Read()
	require.True(t, ok)
	assert.Equal(t, SourceLocal, p.Source())
	assert.Equal(t, 1.0, s.X)
	assert.Positive(t, p.Errors())
}

func TestSyncLoopPublishesLastKnownGood(t *testing.T) {
	b := NewBinding()
	node := &flaky{pos: scene.Vec3{X: 10, Y: 1, Z: 20}}
	require.True(t, b.Offer(Target{Node: node, Score: 100}))
	state := &State{}
	sl := NewSyncLoop(SyncConfig{Interval: 16 * time.Millisecond, StaleAfter: 60}, newProvider(b), b, state, log.NewNop())
	rec := &recorder{}
	sl.AddConsumer(rec)

	require.True(t, sl.Tick(epoch))
	node.pos = scene.Vec3{X: math.NaN(), Z: math.NaN()}
	for i := 1; i <= 3; i++ {
		require.True(t, sl.Tick(epoch.Add(time.Duration(i)*16*time.Millisecond)))
	}

	want := scene.Sample{X: 10, Y: 1, Z: 20}
	require.Len(t, rec.got, 4)
	for _, s := range rec.got {
		assert.Equal(t, want, s)
	}
	snap := state.Snapshot()
	assert.True(t, snap.Stale)
	assert.Equal(t, 3, snap.Failures)
	assert.Equal(t, want, snap.Position)
	assert.True(t, b.Confirmed())
}

func TestSyncLoopNeverFeedsBeforeFirstSample(t *testing.T) {
	b := NewBinding()
	sl := NewSyncLoop(SyncConfig{Interval: time.Millisecond, StaleAfter: 5}, newProvider(b), b, &State{}, log.NewNop())
	rec := &recorder{}
	sl.AddConsumer(rec)
	for i := 0; i < 3; i++ {
		assert.False(t, sl.Tick(epoch.Add(time.Duration(i)*time.Millisecond)))
	}
	assert.Empty(t, rec.got)
}

func TestSyncLoopThrottles(t *testing.T) {
	b := NewBinding()
	require.True(t, b.Offer(Target{Node: &flaky{}, Score: 100}))
	sl := NewSyncLoop(SyncConfig{Interval: 16 * time.Millisecond, StaleAfter: 60}, newProvider(b), b, &State{}, log.NewNop())

	assert.True(t, sl.Tick(epoch))
	assert.False(t, sl.Tick(epoch.Add(10*time.Millisecond)))
	assert.True(t, sl.Tick(epoch.Add(16*time.Millisecond)))
}

func TestSyncLoopStaleSignal(t *testing.T) {
	b := NewBinding()
	node := &flaky{pos: scene.Vec3{X: 1, Z: 1}}
	require.True(t, b.Offer(Target{Node: node, Score: 100}))
	sl := NewSyncLoop(SyncConfig{Interval: time.Millisecond, StaleAfter: 3}, newProvider(b), b, &State{}, log.NewNop())
	var stale []int
	sl.OnStale(func(n int) { stale = append(stale, n) })

	now := epoch
	step := func() {
		sl.Tick(now)
		now = now.Add(time.Millisecond)
	}
	step()
	node.panic = true
	for i := 0; i < 7; i++ {
		step()
	}
	assert.Equal(t, []int{3, 6}, stale)

	node.panic = false
	step()
	node.panic = true
	step()
	step()
	assert.Equal(t, []int{3, 6}, stale, "streak restarts after a valid read")
}

func TestSyncLoopStaleWhilePushedCoversTarget(t *testing.T) {
	b := NewBinding()
	node := &flaky{pos: scene.Vec3{X: 1, Z: 1}}
	require.True(t, b.Offer(Target{Node: node, Score: 100}))
	p := newProvider(b)
	state := &State{}
	sl := NewSyncLoop(SyncConfig{Interval: time.Millisecond, StaleAfter: 3}, p, b, state, log.NewNop())
	var stale []int
	sl.OnStale(func(n int) { stale = append(stale, n) })
	rec := &recorder{}
	sl.AddConsumer(rec)

	require.True(t, p.Push(scene.Sample{X: 7, Z: 7}))
	node.panic = true
	now := epoch
	for i := 0; i < 3; i++ {
		assert.True(t, sl.Tick(now))
		now = now.Add(time.Millisecond)
	}

	assert.Equal(t, []int{3}, stale)
	assert.True(t, p.TargetMissed())
	assert.False(t, b.Confirmed())
	require.Len(t, rec.got, 3)
	assert.InDelta(t, 7, rec.got[2].X, 1e-9)
	snap := state.Snapshot()
	assert.Equal(t, SourcePushed, snap.Source)
	assert.Equal(t, uint64(3), snap.FailedReads)

	node.panic = false
	assert.True(t, sl.Tick(now))
	assert.False(t, p.TargetMissed())
	assert.InDelta(t, 1, rec.got[3].X, 1e-9)
}

func TestSyncLoopRunsOnFrames(t *testing.T) {
	l := loop.New(epoch, nil)
	b := NewBinding()
	require.True(t, b.Offer(Target{Node: &flaky{pos: scene.Vec3{X: 2, Z: 2}}, Score: 100}))
	state := &State{}
	sl := NewSyncLoop(SyncConfig{Interval: 16 * time.Millisecond, StaleAfter: 60}, newProvider(b), b, state, log.NewNop())

	sl.Start(l)
	sl.Start(l)
	l.Advance(160*time.Millisecond, 8*time.Millisecond)
	published := state.Snapshot().Published
	assert.Equal(t, uint64(10), published)

	sl.Stop()
	assert.False(t, sl.Running())
	l.Advance(160*time.Millisecond, 8*time.Millisecond)
	assert.Equal(t, published, state.Snapshot().Published)
}
