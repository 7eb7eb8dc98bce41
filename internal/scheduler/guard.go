package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// guard marks shared state as poisoned when a critical section panics.
type guard struct {
	poisoned atomic.Bool
}

func (g *guard) check() error {
	if g.poisoned.Load() {
		return ErrPoisoned
	}
	return nil
}

// capture must be deferred directly inside a critical section, after the unlock
// defer, so it runs while the lock is still held.
func (g *guard) capture(err *error) {
	if r := recover(); r != nil {
		g.poisoned.Store(true)
		slog.Error("Panic while holding scheduler lock", "panic", r)
		*err = fmt.Errorf("%w: %v", ErrPoisoned, r)
	}
}

// runState is shared by the tick loop and stop requesters. active marks that a
// tick loop exists; only start and finish change it. running is the stop-request
// flag the loop polls each tick. Every access is exclusive.
type runState struct {
	mu      sync.Mutex
	guard   guard
	active  bool
	running bool
}

func (s *runState) with(fn func(st *runState) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.guard.capture(&err)

	if err := s.guard.check(); err != nil {
		return err
	}
	return fn(s)
}

// start claims the tick loop for the caller.
func (s *runState) start() error {
	return s.with(func(st *runState) error {
		if st.active {
			return ErrAlreadyRunning
		}
		st.active = true
		st.running = true
		return nil
	})
}

// finish releases the tick loop. Only the loop that called start may call it.
func (s *runState) finish() error {
	return s.with(func(st *runState) error {
		st.active = false
		st.running = false
		return nil
	})
}

// requestStop asks the active loop, if any, to return.
func (s *runState) requestStop() error {
	return s.with(func(st *runState) error {
		st.running = false
		return nil
	})
}

func (s *runState) shouldRun() (bool, error) {
	var v bool
	err := s.with(func(st *runState) error {
		v = st.running
		return nil
	})
	return v, err
}

func (s *runState) isActive() (bool, error) {
	var v bool
	err := s.with(func(st *runState) error {
		v = st.active
		return nil
	})
	return v, err
}
