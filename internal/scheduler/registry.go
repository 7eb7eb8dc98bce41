package scheduler

import (
	"fmt"
	"sync"
	"time"
)

// TaskID identifies a registered task. Ids are assigned in increasing order
// and never reused by the same scheduler.
type TaskID uint64

// entry is the registry side of a task: the send endpoint of its tick channel
// plus the handles needed to tear the worker down.
type entry struct {
	ticks chan struct{}
	quit  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// stop terminates the worker. Safe to call more than once.
func (e *entry) stop() {
	e.once.Do(func() {
		close(e.quit)
	})
}

type registry struct {
	mu    sync.RWMutex
	guard guard
	next  TaskID
	tasks map[TaskID]*entry
}

func newRegistry() *registry {
	return &registry{tasks: make(map[TaskID]*entry)}
}

func (r *registry) write(fn func(tasks map[TaskID]*entry) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.guard.capture(&err)

	if err := r.guard.check(); err != nil {
		return err
	}
	return fn(r.tasks)
}

func (r *registry) read(fn func(tasks map[TaskID]*entry) error) (err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defer r.guard.capture(&err)

	if err := r.guard.check(); err != nil {
		return err
	}
	return fn(r.tasks)
}

// add allocates a fresh id, spawns the task's worker and registers it.
func (r *registry) add(interval time.Duration, job Job) (TaskID, error) {
	var id TaskID
	err := r.write(func(tasks map[TaskID]*entry) error {
		id = r.next
		r.next++

		e := &entry{
			ticks: make(chan struct{}, 1),
			quit:  make(chan struct{}),
			done:  make(chan struct{}),
		}
		w := newWorker(id, interval, job, time.Now())
		go w.run(e.ticks, e.quit, e.done)

		tasks[id] = e
		return nil
	})
	return id, err
}

// remove unregisters the task and stops its worker. Firings already in flight
// keep running.
func (r *registry) remove(id TaskID) error {
	return r.write(func(tasks map[TaskID]*entry) error {
		e, ok := tasks[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrNoSuchTask, id)
		}
		delete(tasks, id)
		e.stop()
		return nil
	})
}

// clear unregisters every task and stops all workers.
func (r *registry) clear() error {
	return r.write(func(tasks map[TaskID]*entry) error {
		for id, e := range tasks {
			delete(tasks, id)
			e.stop()
		}
		return nil
	})
}

func (r *registry) len() (int, error) {
	var n int
	err := r.read(func(tasks map[TaskID]*entry) error {
		n = len(tasks)
		return nil
	})
	return n, err
}

// broadcastTick delivers one tick to every registered task. A single worker
// that has exited fails the whole broadcast.
func (r *registry) broadcastTick() error {
	return r.read(func(tasks map[TaskID]*entry) error {
		for id, e := range tasks {
			select {
			case <-e.done:
				return fmt.Errorf("%w: task %d", ErrConsumerDied, id)
			default:
			}

			select {
			case e.ticks <- struct{}{}:
			case <-e.done:
				return fmt.Errorf("%w: task %d", ErrConsumerDied, id)
			}
		}
		return nil
	})
}
