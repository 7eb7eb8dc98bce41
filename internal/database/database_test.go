package database

import (
	"path/filepath"
	"testing"
	"time"

	"pollfetch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := New(dbPath)
	require.NoError(t, err)
	require.NotNil(t, db)

	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})

	return db
}

func TestNew(t *testing.T) {
	db := setupTestDB(t)

	assert.NotNil(t, db)
}

func TestNew_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	db, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Schema creation is idempotent
	db, err = New(dbPath)
	require.NoError(t, err)
	assert.NoError(t, db.Close())
}

func TestFetchHistory_InsertAndRecent(t *testing.T) {
	db := setupTestDB(t)
	repo := db.FetchHistoryRepository()

	base := time.Now().Truncate(time.Millisecond)
	records := []*models.FetchRecord{
		{
			AttemptID:   "a1",
			URL:         "http://example.com/file",
			Destination: "/tmp/file",
			Outcome:     models.OutcomeFetched,
			Bytes:       1024,
			StartedAt:   base,
			FinishedAt:  base.Add(50 * time.Millisecond),
		},
		{
			AttemptID:   "a2",
			URL:         "http://example.com/file",
			Destination: "/tmp/file",
			Outcome:     models.OutcomeSkipped,
			StartedAt:   base.Add(time.Second),
			FinishedAt:  base.Add(time.Second + 10*time.Millisecond),
		},
		{
			AttemptID:   "a3",
			URL:         "http://example.com/file",
			Destination: "/tmp/file",
			Outcome:     models.OutcomeFailed,
			Error:       "unexpected status 500",
			StartedAt:   base.Add(2 * time.Second),
			FinishedAt:  base.Add(2*time.Second + 10*time.Millisecond),
		},
	}
	for _, rec := range records {
		require.NoError(t, repo.Insert(rec))
	}

	recent, err := repo.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, "a3", recent[0].AttemptID)
	assert.Equal(t, models.OutcomeFailed, recent[0].Outcome)
	assert.Equal(t, "unexpected status 500", recent[0].Error)
	assert.WithinDuration(t, records[2].StartedAt, recent[0].StartedAt, time.Millisecond)

	assert.Equal(t, "a2", recent[1].AttemptID)
	assert.Equal(t, models.OutcomeSkipped, recent[1].Outcome)
}

func TestFetchHistory_DuplicateAttempt(t *testing.T) {
	db := setupTestDB(t)
	repo := db.FetchHistoryRepository()

	rec := &models.FetchRecord{
		AttemptID:   "dup",
		URL:         "http://example.com/file",
		Destination: "/tmp/file",
		Outcome:     models.OutcomeFetched,
		StartedAt:   time.Now(),
		FinishedAt:  time.Now(),
	}

	require.NoError(t, repo.Insert(rec))
	assert.Error(t, repo.Insert(rec))
}

func TestFetchHistory_RecentEmpty(t *testing.T) {
	db := setupTestDB(t)

	recent, err := db.FetchHistoryRepository().Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
