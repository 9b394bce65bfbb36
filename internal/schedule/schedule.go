// Package schedule provides the timers used by the orchestrator, the change
// watcher and the dispatcher. A Clock can be swapped for FakeClock in tests.
package schedule

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type slot struct {
	timer Timer
	gen   uint64
}

// Slots keeps at most one pending timer per key. Scheduling a key stops
// whatever was pending under it.
type Slots struct {
	clock  Clock
	mu     sync.Mutex
	gen    uint64
	timers map[string]slot
}

func NewSlots(clock Clock) *Slots {
	if clock == nil {
		clock = Real()
	}
	return &Slots{
		clock:  clock,
		timers: make(map[string]slot),
	}
}

func (s *Slots) Clock() Clock {
	return s.clock
}

func (s *Slots) Schedule(key string, d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if cur, ok := s.timers[key]; !ok || cur.gen != gen {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		f()
	})
	s.timers[key] = slot{timer: t, gen: gen}
}

func (s *Slots) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.timers[key]; ok {
		cur.timer.Stop()
		delete(s.timers, key)
	}
}

func (s *Slots) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cur := range s.timers {
		cur.timer.Stop()
		delete(s.timers, key)
	}
}

func (s *Slots) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Backoff returns base * factor^attempt.
func Backoff(base time.Duration, factor float64, attempt int) time.Duration {
	d := float64(base)
	for i := 0; i < attempt; i++ {
		d *= factor
	}
	return time.Duration(d)
}
