package database

import (
	"database/sql"
	"fmt"

	"pollfetch/internal/models"
)

type FetchHistoryRepository interface {
	Insert(rec *models.FetchRecord) error
	Recent(limit int) ([]*models.FetchRecord, error)
}

type fetchHistoryRepository struct {
	db *sql.DB
}

func NewFetchHistoryRepository(db *sql.DB) FetchHistoryRepository {
	return &fetchHistoryRepository{db: db}
}

// Insert stores one fetch attempt. Firings may overlap, so inserts can arrive concurrently;
// SQLite serializes them behind the busy timeout.
func (r *fetchHistoryRepository) Insert(rec *models.FetchRecord) error {
	_, err := r.db.Exec(`INSERT INTO fetch_history (
		attempt_id, url, destination, outcome, bytes, error, started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.AttemptID,
		rec.URL,
		rec.Destination,
		string(rec.Outcome),
		rec.Bytes,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fetch record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (r *fetchHistoryRepository) Recent(limit int) ([]*models.FetchRecord, error) {
	rows, err := r.db.Query(`SELECT
		attempt_id, url, destination, outcome, bytes, error, started_at, finished_at
	FROM fetch_history
	ORDER BY started_at DESC, id DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch history: %w", err)
	}
	defer rows.Close()

	var records []*models.FetchRecord
	for rows.Next() {
		rec := &models.FetchRecord{}
		var outcome string
		if err := rows.Scan(
			&rec.AttemptID,
			&rec.URL,
			&rec.Destination,
			&outcome,
			&rec.Bytes,
			&rec.Error,
			&rec.StartedAt,
			&rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan fetch record: %w", err)
		}
		rec.Outcome = models.Outcome(outcome)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fetch history: %w", err)
	}

	return records, nil
}
