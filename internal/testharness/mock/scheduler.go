package mock

import (
	"sync"
	"time"
)

// Scheduler is a manual timer source. Callbacks run only when a test
// calls FireNext or FireAll.
type Scheduler struct {
	mu      sync.Mutex
	pending []*timer
	delays  []time.Duration
}

type timer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

// AfterFunc schedules f and returns a stop function with the same
// semantics as time.Timer.Stop.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &timer{delay: d, fn: f}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, p := range s.pending {
			if p == t {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				t.stopped = true
				return true
			}
		}
		return false
	}
}

// Pending returns the number of scheduled callbacks that have not fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// FireNext runs the oldest pending callback. It returns false when nothing
// is pending.
func (s *Scheduler) FireNext() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	t := s.pending[0]
	s.pending = s.pending[1:]
	s.mu.Unlock()

	t.fn()
	return true
}

// FireAll runs pending callbacks, including ones they schedule, until none
// remain or limit callbacks have run. It returns the number run.
func (s *Scheduler) FireAll(limit int) int {
	n := 0
	for n < limit && s.FireNext() {
		n++
	}
	return n
}

// Delays returns every delay passed to AfterFunc, in order.
func (s *Scheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

// LastDelay returns the most recent delay, or zero.
func (s *Scheduler) LastDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.delays) == 0 {
		return 0
	}
	return s.delays[len(s.delays)-1]
}
