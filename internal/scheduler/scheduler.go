// Package scheduler runs periodic jobs off a single shared tick loop.
//
// Every registered task gets its own worker goroutine that receives one tick
// per resolution and fires the task's job, detached, whenever the task's
// interval has elapsed since its previous firing. Timing is never more precise
// than the resolution passed to Run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Scheduler dispatches registered tasks. The zero value is not usable; use New.
type Scheduler struct {
	state    runState
	registry *registry
}

// New creates a stopped scheduler with no tasks.
func New() *Scheduler {
	return &Scheduler{
		registry: newRegistry(),
	}
}

// AddTask registers job to run every interval. The job only fires while Run is active.
// An interval not greater than the resolution makes the job fire on every tick.
func (s *Scheduler) AddTask(interval time.Duration, job Job) (TaskID, error) {
	if job == nil {
		return 0, ErrNilJob
	}

	id, err := s.registry.add(interval, job)
	if err != nil {
		return 0, err
	}

	slog.Debug("Task added", "task_id", id, "interval", interval)
	return id, nil
}

// RemoveTask stops future firings of the task. Firings already started are not interrupted.
func (s *Scheduler) RemoveTask(id TaskID) error {
	if err := s.registry.remove(id); err != nil {
		return err
	}

	slog.Debug("Task removed", "task_id", id)
	return nil
}

// Run drives the registered tasks until Stop is called, ctx is cancelled or a
// fatal error occurs. It blocks the calling goroutine.
//
// For every task with an interval greater than resolution, consecutive firings
// start between interval and interval+resolution apart. Run returns nil on a
// requested stop, ErrAlreadyRunning if another Run is active, and ErrPoisoned or
// ErrConsumerDied when the scheduler can no longer guarantee delivery of ticks.
func (s *Scheduler) Run(ctx context.Context, resolution time.Duration) error {
	if resolution <= 0 {
		return ErrInvalidResolution
	}

	if err := s.state.start(); err != nil {
		return err
	}
	defer func() {
		if err := s.state.finish(); err != nil {
			slog.Error("Failed to reset scheduler state", "error", err)
		}
	}()

	slog.Info("Starting task scheduler", "resolution", resolution)

	timer := time.NewTimer(resolution)
	defer timer.Stop()

	for {
		running, err := s.state.shouldRun()
		if err != nil {
			return err
		}
		if !running {
			slog.Info("Task scheduler stopped")
			return nil
		}

		if err := s.registry.broadcastTick(); err != nil {
			slog.Error("Failed to deliver tick", "error", err)
			return fmt.Errorf("tick loop aborted: %w", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Task scheduler stopped", "reason", ctx.Err())
			return nil
		case <-timer.C:
			timer.Reset(resolution)
		}
	}
}

// Stop requests a graceful stop. An active Run observes it within one resolution;
// until that Run has returned, a new Run fails with ErrAlreadyRunning.
func (s *Scheduler) Stop() error {
	return s.state.requestStop()
}

// Running reports whether a Run is active, including one that was asked to stop
// but has not returned yet.
func (s *Scheduler) Running() bool {
	active, err := s.state.isActive()
	return err == nil && active
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() (int, error) {
	return s.registry.len()
}

// Close stops the scheduler and terminates the workers of all registered tasks.
func (s *Scheduler) Close() error {
	if err := s.Stop(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	if err := s.registry.clear(); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}
	return nil
}
