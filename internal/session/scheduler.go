package session

import (
	"sync"
	"time"
)

// Scheduler defers state mutations behind one-shot timers. Every deferred
// mutation carries a guard that is re-evaluated at fire time: the mutation is
// applied only if the condition that justified scheduling it still holds, so
// a timer can never clobber state that has since moved on. The guard/apply
// pair runs while holding the locker the scheduler was built with, making the
// re-check and the mutation atomic with respect to live frame processing.
type Scheduler struct {
	state sync.Locker

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextID  uint64
	stopped bool
}

// NewScheduler creates a scheduler whose deferred mutations are serialized
// against the given locker (the owning store's state lock)
func NewScheduler(state sync.Locker) *Scheduler {
	return &Scheduler{
		state:  state,
		timers: make(map[uint64]*time.Timer),
	}
}

// Schedule arms a one-shot timer. At fire time, guard is re-evaluated under
// the state lock and apply runs only if it returns true. A nil guard always
// applies. Returns false if the scheduler has been stopped.
func (s *Scheduler) Schedule(delay time.Duration, guard func() bool, apply func()) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	id := s.nextID
	s.nextID++

	timer := time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.mu.Unlock()

		s.state.Lock()
		defer s.state.Unlock()
		if guard != nil && !guard() {
			return
		}
		apply()
	})

	s.timers[id] = timer
	s.mu.Unlock()
	return true
}

// Pending returns the number of timers that have not fired yet
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels all pending timers and rejects new ones. Timers already past
// their guard check are unaffected; timers that have not fired never will.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
