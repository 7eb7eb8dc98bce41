package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pollfetch/internal/database"
	"pollfetch/internal/models"
	"pollfetch/internal/scheduler"
)

// Remote is the subset of remote.Client the fetch task needs
type Remote interface {
	LastModified(ctx context.Context, u *url.URL) (time.Time, error)
	Download(ctx context.Context, u *url.URL, w io.Writer) (int64, error)
}

// FetchFile keeps a local file in sync with a remote URL.
// It downloads the file only when the remote copy is newer than the local one.
type FetchFile struct {
	remote  Remote
	history database.FetchHistoryRepository // optional
	url     *url.URL
	dest    string
	timeout time.Duration // bound for a single firing
}

// NewFetchFile parses rawURL once so every firing reuses it
func NewFetchFile(remote Remote, history database.FetchHistoryRepository, rawURL, dest string, timeout time.Duration) (*FetchFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}
	if dest == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	return &FetchFile{
		remote:  remote,
		history: history,
		url:     u,
		dest:    dest,
		timeout: timeout,
	}, nil
}

// NewerRemote reports whether the remote file is more recent than the local one.
// Any failure to compare (missing local file, network error, missing or bad header)
// counts as newer.
func (f *FetchFile) NewerRemote(ctx context.Context) bool {
	info, err := os.Stat(f.dest)
	if err != nil {
		slog.Debug("Could not stat destination file", "dest", f.dest, "error", err)
		return true
	}

	remoteTime, err := f.remote.LastModified(ctx, f.url)
	if err != nil {
		slog.Warn("Could not get remote last-modified", "url", f.url.String(), "error", err)
		return true
	}

	return info.ModTime().Before(remoteTime)
}

// Sync downloads the remote file if it is newer and returns a record of the attempt
func (f *FetchFile) Sync(ctx context.Context) *models.FetchRecord {
	rec := &models.FetchRecord{
		AttemptID:   uuid.NewString(),
		URL:         f.url.String(),
		Destination: f.dest,
		StartedAt:   time.Now(),
	}
	defer func() {
		rec.FinishedAt = time.Now()
	}()

	if !f.NewerRemote(ctx) {
		rec.Outcome = models.OutcomeSkipped
		return rec
	}

	n, err := f.download(ctx)
	rec.Bytes = n
	if err != nil {
		rec.Outcome = models.OutcomeFailed
		rec.Error = err.Error()
		return rec
	}

	rec.Outcome = models.OutcomeFetched
	return rec
}

// download writes the remote body to a temp file next to the destination and renames
// it into place, so overlapping firings never leave a partial file behind.
func (f *FetchFile) download(ctx context.Context) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(f.dest), "."+filepath.Base(f.dest)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := f.remote.Download(ctx, f.url, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(tmpName, f.dest); err != nil {
		return n, fmt.Errorf("failed to replace destination: %w", err)
	}

	return n, nil
}

// Job returns the scheduler job for this task. Errors are logged and recorded,
// never returned to the scheduler.
func (f *FetchFile) Job() scheduler.Job {
	return func() {
		ctx := context.Background()
		if f.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}

		rec := f.Sync(ctx)
		logger := slog.With("attempt_id", rec.AttemptID, "url", rec.URL, "dest", rec.Destination)

		switch rec.Outcome {
		case models.OutcomeFetched:
			logger.Info("Fetched remote file", "bytes", rec.Bytes, "duration", rec.Duration())
		case models.OutcomeSkipped:
			logger.Debug("Local file is up to date")
		case models.OutcomeFailed:
			logger.Error("Failed to fetch remote file", "error", rec.Error)
		}

		if f.history == nil {
			return
		}
		if err := f.history.Insert(rec); err != nil {
			logger.Error("Error recording fetch attempt", "error", err)
		}
	}
}
