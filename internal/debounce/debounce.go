// Package debounce coalesces bursts of writes into the last one.
package debounce

import (
	"sync"
	"time"
)

// Slot holds at most one pending task. Each Schedule replaces the pending
// task and restarts the quiet period; only the last task runs.
type Slot struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	pending func()
}

// New returns a Slot that runs tasks after delay of inactivity.
func New(delay time.Duration) *Slot {
	return &Slot{delay: delay}
}

// Schedule cancels any pending task and schedules fn.
func (s *Slot) Schedule(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.pending = fn
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

// Flush runs the pending task immediately on the calling goroutine.
// It reports whether there was one.
func (s *Slot) Flush() bool {
	s.mu.Lock()
	fn := s.takeLocked()
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Stop drops the pending task. It reports whether there was one.
func (s *Slot) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.takeLocked() != nil
}

// Pending reports whether a task is waiting to run.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending != nil
}

func (s *Slot) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	fn := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *Slot) takeLocked() func() {
	s.stopLocked()
	s.gen++
	fn := s.pending
	s.pending = nil
	return fn
}

func (s *Slot) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
