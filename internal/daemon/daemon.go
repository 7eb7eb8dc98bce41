package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"pollfetch/internal/database"
	"pollfetch/internal/remote"
	"pollfetch/internal/scheduler"
	"pollfetch/internal/tasks"
)

// Daemon represents the main daemon structure
type Daemon struct {
	scheduler  *scheduler.Scheduler
	database   *database.DB // nil when history is disabled
	resolution time.Duration

	// Firings hold mu for reading while they run; Close takes it for writing so
	// the database outlives every firing that already started.
	mu     sync.RWMutex
	closed bool
}

// Config holds daemon configuration
type Config struct {
	URL            string        // Remote file to mirror
	Output         string        // Local destination path
	Interval       time.Duration // Minimum spacing between fetch attempts
	Resolution     time.Duration // Scheduler tick
	RequestTimeout time.Duration // Per HTTP request
	DBPath         string        // Path to SQLite history database, empty to disable
}

// New creates a new daemon instance with the fetch task registered
func New(cfg Config) (*Daemon, error) {
	if cfg.Resolution <= 0 {
		return nil, fmt.Errorf("resolution must be greater than 0")
	}

	var (
		db      *database.DB
		history database.FetchHistoryRepository
	)
	if cfg.DBPath != "" {
		var err error
		db, err = database.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		history = db.FetchHistoryRepository()
	}

	client := remote.NewClient(&http.Client{}, cfg.RequestTimeout)

	// A firing makes two requests, bound it by both
	fetch, err := tasks.NewFetchFile(client, history, cfg.URL, cfg.Output, 2*cfg.RequestTimeout)
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to create fetch task: %w", err)
	}

	d := &Daemon{
		scheduler:  scheduler.New(),
		database:   db,
		resolution: cfg.Resolution,
	}

	id, err := d.scheduler.AddTask(cfg.Interval, d.track(fetch.Job()))
	if err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to add fetch task: %w", err)
	}

	slog.Info("Registered fetch task",
		"task_id", id,
		"url", cfg.URL,
		"output", cfg.Output,
		"interval", cfg.Interval,
		"history", cfg.DBPath != "",
	)

	return d, nil
}

// track wraps job so Close can wait for it. Firings that start after Close are dropped.
func (d *Daemon) track(job scheduler.Job) scheduler.Job {
	return func() {
		d.mu.RLock()
		defer d.mu.RUnlock()

		if d.closed {
			return
		}
		job()
	}
}

// Run blocks until ctx is cancelled, Stop is called, or the scheduler fails
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Starting daemon")

	if err := d.scheduler.Run(ctx, d.resolution); err != nil {
		return fmt.Errorf("scheduler failed: %w", err)
	}

	slog.Info("Daemon stopped")
	return nil
}

// Stop asks a running daemon to return from Run
func (d *Daemon) Stop() error {
	return d.scheduler.Stop()
}

// Close tears down the scheduler, waits for in-flight firings and closes the database.
// A firing is bounded by its own timeout, so the wait is too.
func (d *Daemon) Close() error {
	schedErr := d.scheduler.Close()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	closeDB(d.database)

	if schedErr != nil {
		return fmt.Errorf("failed to close scheduler: %w", schedErr)
	}
	return nil
}

func closeDB(db *database.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database", "error", err)
	}
}
