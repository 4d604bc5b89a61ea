package tracking

import (
	"time"

	"github.com/zeusync/scenehook/internal/core/loop"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

// Consumer receives the published position on every sync tick.
type Consumer interface {
	Consume(now time.Time, s scene.Sample)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(now time.Time, s scene.Sample)

func (f ConsumerFunc) Consume(now time.Time, s scene.Sample) { f(now, s) }

type SyncConfig struct {
	// Interval is the minimum time between two publishes.
	Interval time.Duration
	// StaleAfter is the failure streak that invalidates the bound target.
	StaleAfter int
	// WarnEvery throttles warnings while the streak lasts past StaleAfter.
	WarnEvery uint64
}

// SyncLoop republishes the player position every frame. Once a valid sample
// was seen, consumers always get a position: the fresh one or the last good.
type SyncLoop struct {
	cfg       SyncConfig
	provider  *Provider
	binding   *Binding
	state     *State
	consumers []Consumer
	onStale   func(failures int)
	log       log.Log
	warn      *log.Limiter

	loop        *loop.Loop
	frame       loop.Handle
	running     bool
	lastPublish time.Time
	// sinceStale counts misses since the last hit or stale signal.
	sinceStale  int
}

func NewSyncLoop(cfg SyncConfig, provider *Provider, binding *Binding, state *State, logger log.Log) *SyncLoop {
	if cfg.WarnEvery == 0 {
		cfg.WarnEvery = 300
	}
	return &SyncLoop{
		cfg:      cfg,
		provider: provider,
		binding:  binding,
		state:    state,
		log:      logger.With(log.Component("sync")),
		warn:     log.Every(cfg.WarnEvery),
	}
}

// AddConsumer appends c. Consumers run in registration order.
func (s *SyncLoop) AddConsumer(c Consumer) {
	s.consumers = append(s.consumers, c)
}

// OnStale sets the callback fired each time StaleAfter consecutive reads
// fail.
func (s *SyncLoop) OnStale(fn func(failures int)) {
	s.onStale = fn
}

// Start runs Tick on every frame of l until Stop.
func (s *SyncLoop) Start(l *loop.Loop) {
	if s.running {
		return
	}
	s.loop = l
	s.running = true
	s.frame = l.RequestFrame(s.onFrame)
}

// Stop ends the frame chain.
func (s *SyncLoop) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.frame.Cancel()
}

func (s *SyncLoop) Running() bool { return s.running }

func (s *SyncLoop) onFrame(now time.Time) {
	if !s.running {
		return
	}
	s.frame = s.loop.RequestFrame(s.onFrame)
	s.Tick(now)
}

// Tick performs one read-publish-feed cycle unless throttled. It reports
// whether consumers were fed.
func (s *SyncLoop) Tick(now time.Time) bool {
	if !s.lastPublish.IsZero() && now.Sub(s.lastPublish) < s.cfg.Interval {
		return false
	}
	s.lastPublish = now

	if sample, ok := s.provider.Read(); ok {
		src, missed := s.provider.Source(), s.provider.TargetMissed()
		if t, bound := s.binding.Current(); bound && !missed && src != SourceGetter && src != SourcePushed {
			s.binding.Confirm(t.Key)
		}
		failures := s.state.observe(now, sample, src, missed)
		s.feed(now, sample)
		if missed {
			s.countMiss(failures)
		} else {
			s.warn.Reset()
			s.sinceStale = 0
		}
		return true
	}

	failures, fallback, ok := s.state.miss(now)
	s.countMiss(failures)
	if !ok {
		return false
	}
	s.feed(now, fallback)
	return true
}

// countMiss advances the stale streak for a tick whose bound target yielded
// nothing and fires the stale hook every StaleAfter misses.
func (s *SyncLoop) countMiss(failures int) {
	s.sinceStale++
	if s.cfg.StaleAfter > 0 && s.sinceStale == s.cfg.StaleAfter {
		s.sinceStale = 0
		s.log.Warn("player position stale", log.Int("failures", failures))
		if s.onStale != nil {
			s.onStale(failures)
		}
	} else if failures > s.cfg.StaleAfter && s.warn.Allow() {
		s.log.Warn("player position still unavailable", log.Int("failures", failures))
	}
}

func (s *SyncLoop) feed(now time.Time, sample scene.Sample) {
	for _, c := range s.consumers {
		c.Consume(now, sample)
	}
}
