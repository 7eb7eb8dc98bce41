package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// killWorker simulates a crashed worker: it exits while still registered.
func killWorker(t *testing.T, s *Scheduler, id TaskID) {
	t.Helper()

	var e *entry
	err := s.registry.read(func(tasks map[TaskID]*entry) error {
		e = tasks[id]
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, e)

	e.stop()
	select {
	case <-e.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit")
	}
}

func TestBroadcastTick_ConsumerDied(t *testing.T) {
	s := New()
	defer s.Close()

	id, err := s.AddTask(time.Second, func() {})
	require.NoError(t, err)
	killWorker(t, s, id)

	err = s.registry.broadcastTick()
	assert.ErrorIs(t, err, ErrConsumerDied)
}

func TestRun_ConsumerDiedAbortsRun(t *testing.T) {
	s := New()
	defer s.Close()

	_, err := s.AddTask(time.Second, func() {})
	require.NoError(t, err)
	id, err := s.AddTask(time.Second, func() {})
	require.NoError(t, err)
	killWorker(t, s, id)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = s.Run(ctx, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrConsumerDied)
	assert.False(t, s.Running())
}

func TestBroadcastTick_RemovedTaskIsNotDead(t *testing.T) {
	s := New()
	defer s.Close()

	id, err := s.AddTask(time.Second, func() {})
	require.NoError(t, err)
	require.NoError(t, s.RemoveTask(id))

	assert.NoError(t, s.registry.broadcastTick())
}

func TestRegistry_Poisoned(t *testing.T) {
	s := New()

	err := s.registry.write(func(map[TaskID]*entry) error {
		panic("boom")
	})
	require.ErrorIs(t, err, ErrPoisoned)

	_, err = s.AddTask(time.Second, func() {})
	assert.ErrorIs(t, err, ErrPoisoned)
	assert.ErrorIs(t, s.RemoveTask(0), ErrPoisoned)
	assert.ErrorIs(t, s.Run(context.Background(), time.Millisecond), ErrPoisoned)
	assert.False(t, s.Running())
}

func TestRunState_Poisoned(t *testing.T) {
	s := New()

	err := s.state.with(func(*runState) error {
		panic("boom")
	})
	require.ErrorIs(t, err, ErrPoisoned)

	assert.ErrorIs(t, s.Run(context.Background(), time.Millisecond), ErrPoisoned)
	assert.ErrorIs(t, s.Stop(), ErrPoisoned)
	assert.False(t, s.Running())

	// The registry has its own guard and is unaffected.
	_, err = s.AddTask(time.Second, func() {})
	assert.NoError(t, err)
	assert.NoError(t, s.registry.clear())
}

func TestWorker_Due(t *testing.T) {
	start := time.Now()
	w := newWorker(0, 100*time.Millisecond, func() {}, start)

	assert.True(t, w.due(start), "first tick fires immediately")
	assert.False(t, w.due(start.Add(50*time.Millisecond)))
	assert.False(t, w.due(start.Add(99*time.Millisecond)))
	assert.True(t, w.due(start.Add(100*time.Millisecond)))
	assert.False(t, w.due(start.Add(150*time.Millisecond)))
	assert.True(t, w.due(start.Add(205*time.Millisecond)))
	assert.Equal(t, start.Add(205*time.Millisecond), w.lastRun)
}

func TestWorker_ZeroIntervalAlwaysDue(t *testing.T) {
	start := time.Now()
	w := newWorker(0, 0, func() {}, start)

	assert.True(t, w.due(start))
	assert.True(t, w.due(start))
	assert.True(t, w.due(start.Add(time.Nanosecond)))
}

func TestRunState_StopDoesNotReleaseLoop(t *testing.T) {
	var st runState

	require.NoError(t, st.start())
	require.NoError(t, st.requestStop())

	running, err := st.shouldRun()
	require.NoError(t, err)
	assert.False(t, running)

	// The stopped loop still owns the state until it finishes.
	assert.ErrorIs(t, st.start(), ErrAlreadyRunning)

	require.NoError(t, st.finish())
	assert.NoError(t, st.start())
}
