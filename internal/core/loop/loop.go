// Package loop implements the single-goroutine cooperative scheduler every
// engine component runs on. Work is expressed as frame callbacks (one-shot,
// re-requested each frame) and timed callbacks; nothing blocks inside a
// callback. The loop can be driven by a real ticker through Run or stepped
// manually for deterministic tests.
package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zeusync/scenehook/internal/core/observability/log"
)

// Func is a scheduled callback. now is the loop clock at invocation.
type Func func(now time.Time)

type frame struct {
	fn       Func
	canceled bool
}

// Handle cancels a scheduled frame or timer callback.
type Handle struct {
	l     *Loop
	timer *timer
	frame *frame
}

// Cancel prevents any future invocation. Safe to call repeatedly and on the
// zero Handle.
func (h Handle) Cancel() {
	if h.l == nil {
		return
	}
	h.l.mu.Lock()
	defer h.l.mu.Unlock()
	if h.timer != nil {
		h.timer.canceled = true
		h.l.timers.remove(h.timer)
	}
	if h.frame != nil {
		h.frame.canceled = true
	}
}

type Loop struct {
	mu     sync.Mutex
	exec   sync.Mutex
	now    time.Time
	seq    uint64
	timers timerQueue
	frames []*frame
	posted []func()
	log    log.Log
}

// New creates a loop whose clock starts at start.
func New(start time.Time, logger log.Log) *Loop {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loop{
		now: start,
		log: logger.With(log.Component("loop")),
	}
}

// Now returns the loop clock.
func (l *Loop) Now() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.now
}

// RequestFrame schedules fn for the next Step. Frame callbacks are one-shot;
// continuous tasks re-request from inside their callback.
func (l *Loop) RequestFrame(fn Func) Handle {
	f := &frame{fn: fn}
	l.mu.Lock()
	l.frames = append(l.frames, f)
	l.mu.Unlock()
	return Handle{l: l, frame: f}
}

// After runs fn once, d after the current loop time.
func (l *Loop) After(d time.Duration, fn Func) Handle {
	return l.schedule(d, 0, fn)
}

// Every runs fn every d, first after d. d must be positive.
func (l *Loop) Every(d time.Duration, fn Func) Handle {
	if d <= 0 {
		panic(fmt.Sprintf("loop: non-positive interval %s", d))
	}
	return l.schedule(d, d, fn)
}

func (l *Loop) schedule(delay, every time.Duration, fn Func) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	t := &timer{due: l.now.Add(delay), every: every, seq: l.seq, fn: fn}
	l.timers.push(t)
	return Handle{l: l, timer: t}
}

// Post queues fn to run on the loop during the next Step. Safe to call from
// any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
}

// Do runs fn synchronously, excluded from every loop callback. Must not be
// called from inside a loop callback.
func (l *Loop) Do(fn func()) {
	l.exec.Lock()
	defer l.exec.Unlock()
	l.guard("do", fn)
}

// Step advances the clock to now and runs, in order: due timers (each
// observing its own due time), posted functions, then the frame callbacks
// that were pending when the step began.
func (l *Loop) Step(now time.Time) {
	l.exec.Lock()
	defer l.exec.Unlock()

	for {
		l.mu.Lock()
		t, ok := l.timers.popDue(now)
		if ok {
			if t.due.After(l.now) {
				l.now = t.due
			}
			if t.every > 0 {
				l.seq++
				t.seq = l.seq
				t.due = t.due.Add(t.every)
				l.timers.push(t)
			}
		}
		at := l.now
		l.mu.Unlock()
		if !ok {
			break
		}
		l.guard("timer", func() { t.fn(at) })
	}

	l.mu.Lock()
	if now.After(l.now) {
		l.now = now
	}
	at := l.now
	posted := l.posted
	l.posted = nil
	frames := l.frames
	l.frames = nil
	l.mu.Unlock()

	for _, fn := range posted {
		l.guard("post", fn)
	}
	for _, f := range frames {
		l.mu.Lock()
		canceled := f.canceled
		l.mu.Unlock()
		if canceled {
			continue
		}
		l.guard("frame", func() { f.fn(at) })
	}
}

// Advance steps the loop forward by total in increments of frame.
func (l *Loop) Advance(total, frame time.Duration) {
	if frame <= 0 {
		frame = total
	}
	start := l.Now()
	for elapsed := frame; elapsed <= total; elapsed += frame {
		l.Step(start.Add(elapsed))
	}
}

// Run drives the loop from wall-clock time at the given frame interval until
// ctx is done.
func (l *Loop) Run(ctx context.Context, frame time.Duration) error {
	ticker := time.NewTicker(frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}

// Pending reports queued frames and live timers.
func (l *Loop) Pending() (frames, timers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range l.frames {
		if !f.canceled {
			frames++
		}
	}
	for _, t := range l.timers.items {
		if !t.canceled {
			timers++
		}
	}
	return frames, timers
}

func (l *Loop) guard(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("callback panicked",
				log.String("kind", kind),
				log.Any("panic", r),
			)
		}
	}()
	fn()
}
