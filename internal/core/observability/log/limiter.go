package log

import "sync/atomic"

// Limiter gates repetitive diagnostics so that sustained failures produce a
// bounded amount of output.
type Limiter struct {
	seen   atomic.Uint64
	cap    uint64
	capped bool
	every  uint64
}

// Cap allows only the first n events through. Cap(0) allows none.
func Cap(n uint64) *Limiter {
	return &Limiter{cap: n, capped: true}
}

// Every allows one event in n through, starting with the n-th.
func Every(n uint64) *Limiter {
	if n == 0 {
		n = 1
	}
	return &Limiter{every: n}
}

// Allow counts the event and reports whether it should be logged.
func (l *Limiter) Allow() bool {
	n := l.seen.Add(1)
	if l.capped {
		return n <= l.cap
	}
	if l.every > 0 {
		return n%l.every == 0
	}
	return true
}

// Seen returns how many events were counted, logged or not.
func (l *Limiter) Seen() uint64 {
	return l.seen.Load()
}

// Reset restarts counting. Capped limiters allow n events again.
func (l *Limiter) Reset() {
	l.seen.Store(0)
}
