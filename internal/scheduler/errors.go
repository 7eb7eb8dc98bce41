package scheduler

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when another Run is active on the same scheduler.
	ErrAlreadyRunning = errors.New("scheduler was already running")

	// ErrPoisoned is returned once a critical section panicked while holding a lock.
	// The scheduler cannot recover from it; create a new one.
	ErrPoisoned = errors.New("scheduler state poisoned")

	// ErrNoSuchTask is returned when removing a task id that is not registered.
	ErrNoSuchTask = errors.New("trying to remove nonexistent task")

	// ErrConsumerDied is returned by Run when a registered task's worker has exited
	// and can no longer receive ticks.
	ErrConsumerDied = errors.New("task worker died unexpectedly")

	ErrNilJob            = errors.New("job must not be nil")
	ErrInvalidResolution = errors.New("resolution must be greater than 0")
)
