package scheduler

import (
	"log/slog"
	"time"
)

// Job is a unit of work fired by the scheduler. It handles its own errors and
// must be safe to run concurrently with itself.
type Job func()

// worker consumes ticks for a single task. lastRun is owned by the worker
// goroutine alone.
type worker struct {
	id       TaskID
	job      Job
	interval time.Duration
	lastRun  time.Time
}

func newWorker(id TaskID, interval time.Duration, job Job, now time.Time) *worker {
	return &worker{
		id:       id,
		job:      job,
		interval: interval,
		// First tick after registration fires immediately.
		lastRun: now.Add(-interval),
	}
}

// run blocks until quit is closed. done is closed when the worker exits for any reason.
func (w *worker) run(ticks <-chan struct{}, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Task worker crashed", "task_id", w.id, "panic", r)
		}
	}()

	for {
		select {
		case <-quit:
			slog.Debug("Task worker exiting", "task_id", w.id)
			return
		case <-ticks:
			if w.due(time.Now()) {
				w.fire()
			}
		}
	}
}

// due reports whether the task should fire at now and, if so, resets lastRun.
func (w *worker) due(now time.Time) bool {
	if now.Sub(w.lastRun) < w.interval {
		return false
	}
	w.lastRun = now
	return true
}

// fire starts the job on its own goroutine. No handle is kept: firings are not
// joined, cancelled or serialized against each other.
func (w *worker) fire() {
	slog.Debug("Firing task", "task_id", w.id)
	go func(id TaskID, job Job) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Task job panicked", "task_id", id, "panic", r)
			}
		}()
		job()
	}(w.id, w.job)
}
