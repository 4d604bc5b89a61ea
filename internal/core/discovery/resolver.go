package discovery

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/zeusync/scenehook/internal/core/events/bus"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
	"github.com/zeusync/scenehook/internal/core/tracking"
)

// Resolver runs the strategies in priority order and binds the winner. It is
// the only writer of which node the Binding holds.
type Resolver struct {
	strategies []Strategy
	onDemand   []Strategy
	binding    *tracking.Binding
	state      *tracking.State
	bus        bus.EventBus
	log        log.Log
	misses     *log.Limiter

	attempts  uint64
	announced uint64
	lastErr   error
}

func NewResolver(binding *tracking.Binding, state *tracking.State, eventBus bus.EventBus, logger log.Log, strategies ...Strategy) *Resolver {
	return &Resolver{
		strategies: strategies,
		binding:    binding,
		state:      state,
		bus:        eventBus,
		log:        logger.With(log.Component("resolver")),
		misses:     log.Every(100),
	}
}

// Add appends a strategy at the lowest priority.
func (r *Resolver) Add(s Strategy) {
	r.strategies = append(r.strategies, s)
}

// AddOnDemand registers a strategy that only ResolveVia runs. Resolve never
// polls it.
func (r *Resolver) AddOnDemand(s Strategy) {
	r.onDemand = append(r.onDemand, s)
}

// Resolved reports whether a target is bound.
func (r *Resolver) Resolved() bool {
	_, ok := r.binding.Current()
	return ok
}

// Resolve tries each strategy in order and stops at the first that yields a
// candidate. A confirmed target short-circuits the whole call.
func (r *Resolver) Resolve(now time.Time) bool {
	if r.binding.Confirmed() {
		return true
	}
	r.attempts++
	var errs error
	for _, s := range r.strategies {
		c, err := r.find(s)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		r.offer(c, now)
		return r.Resolved()
	}
	r.miss(errs)
	return r.Resolved()
}

// ResolveVia runs one strategy by name, polled or on-demand.
func (r *Resolver) ResolveVia(name string, now time.Time) bool {
	if r.binding.Confirmed() {
		return true
	}
	for s := range r.named(name) {
		r.attempts++
		c, err := r.find(s)
		if err != nil {
			r.miss(err)
			return r.Resolved()
		}
		r.offer(c, now)
		return r.Resolved()
	}
	r.miss(fmt.Errorf("%w: %s", ErrUnknownStrategy, name))
	return r.Resolved()
}

// Invalidate drops the bound target after sustained read failures.
func (r *Resolver) Invalidate(failures int, now time.Time) bool {
	old, ok := r.binding.Clear()
	if !ok {
		return false
	}
	r.log.Warn("player target invalidated",
		log.String("name", old.Name()),
		log.String("strategy", old.Strategy),
		log.Int("failures", failures),
	)
	r.publish(bus.PlayerStale, now, bus.PlayerStaleData{Strategy: old.Strategy, Failures: failures})
	return true
}

// Attempts reports how many resolution passes ran.
func (r *Resolver) Attempts() uint64 { return r.attempts }

// Announced reports how many targets were bound.
func (r *Resolver) Announced() uint64 { return r.announced }

// LastError returns why the last pass found nothing.
func (r *Resolver) LastError() error { return r.lastErr }

func (r *Resolver) named(name string) iter.Seq[Strategy] {
	return func(yield func(Strategy) bool) {
		for _, group := range [][]Strategy{r.strategies, r.onDemand} {
			for _, s := range group {
				if s.Name() == name && !yield(s) {
					return
				}
			}
		}
	}
}

func (r *Resolver) find(s Strategy) (c Candidate, err error) {
	if perr := scene.Safe(func() error { c, err = s.Find(); return nil }); perr != nil {
		return Candidate{}, fmt.Errorf("%s: %w", s.Name(), perr)
	}
	if err != nil {
		return Candidate{}, fmt.Errorf("%s: %w", s.Name(), err)
	}
	return c, nil
}

func (r *Resolver) offer(c Candidate, now time.Time) {
	r.lastErr = nil
	t := tracking.Target{
		Node:       c.Node,
		Strategy:   c.Strategy,
		Score:      c.Score,
		ResolvedAt: now,
		Key:        scene.Identify(c.Node),
	}
	if !r.binding.Offer(t) {
		return
	}
	r.announced++
	r.state.SetStrategy(t.Strategy)
	r.log.Info("player resolved",
		log.String("name", t.Name()),
		log.String("strategy", t.Strategy),
		log.Float64("score", t.Score),
		log.Uint64("attempts", r.attempts),
	)
	r.publish(bus.PlayerResolved, now, bus.PlayerResolvedData{
		Name:     t.Name(),
		Strategy: t.Strategy,
		Score:    t.Score,
		Key:      t.Key,
	})
}

func (r *Resolver) miss(err error) {
	r.lastErr = err
	if r.misses.Allow() {
		r.log.Debug("player not found", log.Uint64("attempts", r.attempts), log.Error(err))
	}
}

func (r *Resolver) publish(typ string, now time.Time, data any) {
	if r.bus == nil {
		return
	}
	if err := r.bus.Publish(bus.NewEvent(typ, "resolver", now, data)); err != nil {
		r.log.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
