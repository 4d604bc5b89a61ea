package tracking

import (
	"sync"
	"time"

	"github.com/zeusync/scenehook/internal/core/scene"
)

// State is the engine state owned by the sync loop. Other goroutines only
// read it through Snapshot.
type State struct {
	mu sync.RWMutex

	current    scene.Sample
	hasCurrent bool
	lastGood   scene.Sample
	hasGood    bool
	stale      bool

	failures    int
	ticks       uint64
	published   uint64
	failedReads uint64
	strategy    string
	source      Source
	updatedAt   time.Time
}

// Snapshot is a read-only copy of State.
type Snapshot struct {
	Position     scene.Sample `json:"position"`
	HasPosition  bool         `json:"has_position"`
	Stale        bool         `json:"stale"`
	Failures     int          `json:"consecutive_failures"`
	Ticks        uint64       `json:"ticks"`
	Published    uint64       `json:"published"`
	FailedReads  uint64       `json:"failed_reads"`
	LastStrategy string       `json:"last_strategy"`
	Source       Source       `json:"source"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Position:     s.current,
		HasPosition:  s.hasCurrent,
		Stale:        s.stale,
		Failures:     s.failures,
		Ticks:        s.ticks,
		Published:    s.published,
		FailedReads:  s.failedReads,
		LastStrategy: s.strategy,
		Source:       s.source,
		UpdatedAt:    s.updatedAt,
	}
}

// LastGood returns the last valid sample ever observed.
func (s *State) LastGood() (scene.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastGood, s.hasGood
}

// SetStrategy records the strategy that produced the bound target.
func (s *State) SetStrategy(name string) {
	s.mu.Lock()
	s.strategy = name
	s.mu.Unlock()
}

// observe records a published sample. When the bound target failed and the
// sample only stands in for it, the failure streak keeps growing; the
// returned value is the streak length.
func (s *State) observe(now time.Time, sample scene.Sample, src Source, targetMissed bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.published++
	if targetMissed {
		s.failedReads++
		s.failures++
	} else {
		s.failures = 0
	}
	s.stale = false
	s.current = sample
	s.hasCurrent = true
	s.lastGood = sample
	s.hasGood = true
	s.source = src
	s.updatedAt = now
	return s.failures
}

// miss counts a failed read and returns the streak length and the fallback
// sample, if any.
func (s *State) miss(now time.Time) (int, scene.Sample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.failedReads++
	s.failures++
	if s.hasGood {
		s.published++
		s.current = s.lastGood
		s.hasCurrent = true
		s.stale = true
		s.updatedAt = now
	}
	return s.failures, s.lastGood, s.hasGood
}
