// Package scheduler runs bounded-retry probes on the engine loop. Every probe
// checks its success guard before doing work and stops at its attempt
// ceiling.
package scheduler

import (
	"fmt"
	"time"

	"github.com/zeusync/scenehook/internal/core/events/bus"
	"github.com/zeusync/scenehook/internal/core/loop"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/core/scene"
)

type State uint8

const (
	Idle State = iota
	Running
	Succeeded
	Exhausted
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= Stopped; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("scheduler: unknown state %q", b)
}

// Probe is a retry policy. Done is the shared success guard; Work performs
// one attempt and reports success.
type Probe struct {
	Name        string
	MaxAttempts int
	Done        func() bool
	Work        func(now time.Time) bool

	// Interval drives the probe from the loop clock.
	Interval time.Duration
	// Source drives the probe from host notifications instead.
	Source scene.Notifier
}

// Status is a probe's progress.
type Status struct {
	Name        string `json:"name"`
	State       State  `json:"state"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Arms        int    `json:"arms"`
}

type runner struct {
	s        *Scheduler
	probe    Probe
	state    State
	attempts int
	arms     int
	timer    loop.Handle
	cancel   func()
}

type Scheduler struct {
	loop    *loop.Loop
	bus     bus.EventBus
	log     log.Log
	runners []*runner
}

func New(l *loop.Loop, eventBus bus.EventBus, logger log.Log) *Scheduler {
	return &Scheduler{
		loop: l,
		bus:  eventBus,
		log:  logger.With(log.Component("scheduler")),
	}
}

// Add registers p; it starts with Start. A probe without an attempt ceiling
// gets a single attempt.
func (s *Scheduler) Add(p Probe) {
	if p.MaxAttempts <= 0 {
		s.log.Warn("probe without attempt ceiling", log.String("probe", p.Name))
		p.MaxAttempts = 1
	}
	r := &runner{s: s, probe: p}
	s.runners = append(s.runners, r)
}

// Start arms every idle probe.
func (s *Scheduler) Start() {
	for _, r := range s.runners {
		if r.state == Idle {
			r.arm()
		}
	}
}

// Rearm restarts probes that stopped, with a fresh attempt budget. Running
// probes are left alone.
func (s *Scheduler) Rearm() int {
	n := 0
	for _, r := range s.runners {
		if r.state == Running || r.state == Idle {
			continue
		}
		r.attempts = 0
		r.arm()
		n++
	}
	if n > 0 {
		s.log.Info("probes rearmed", log.Int("probes", n))
	}
	return n
}

// Stop disarms every probe.
func (s *Scheduler) Stop() {
	for _, r := range s.runners {
		if r.state == Running {
			r.finish(Stopped)
		}
	}
}

func (s *Scheduler) Status() []Status {
	out := make([]Status, len(s.runners))
	for i, r := range s.runners {
		out[i] = Status{
			Name:        r.probe.Name,
			State:       r.state,
			Attempts:    r.attempts,
			MaxAttempts: r.probe.MaxAttempts,
			Arms:        r.arms,
		}
	}
	return out
}

func (r *runner) arm() {
	r.state = Running
	r.arms++
	switch {
	case r.probe.Source != nil:
		r.cancel = r.probe.Source.Subscribe(func() {
			r.s.loop.Post(func() { r.fire(r.s.loop.Now()) })
		})
	case r.probe.Interval > 0:
		r.timer = r.s.loop.Every(r.probe.Interval, r.fire)
	default:
		r.s.log.Warn("probe has no trigger", log.String("probe", r.probe.Name))
		r.state = Stopped
	}
}

func (r *runner) fire(now time.Time) {
	if r.state != Running {
		return
	}
	if r.probe.Done != nil && r.probe.Done() {
		r.finish(Succeeded)
		return
	}
	r.attempts++
	if r.probe.Work != nil && r.probe.Work(now) {
		r.s.log.Debug("probe succeeded", log.String("probe", r.probe.Name), log.Int("attempts", r.attempts))
		r.finish(Succeeded)
		return
	}
	if r.attempts >= r.probe.MaxAttempts {
		r.finish(Exhausted)
		r.s.log.Warn("probe exhausted",
			log.String("probe", r.probe.Name),
			log.Int("attempts", r.attempts),
		)
		if r.s.bus != nil {
			err := r.s.bus.Publish(bus.NewEvent(bus.ProbeExhausted, "scheduler", now, bus.ProbeExhaustedData{
				Probe:    r.probe.Name,
				Attempts: r.attempts,
			}))
			if err != nil {
				r.s.log.Warn("event handler failed", log.String("event", bus.ProbeExhausted), log.Error(err))
			}
		}
	}
}

func (r *runner) finish(st State) {
	r.state = st
	r.timer.Cancel()
	r.timer = loop.Handle{}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}
