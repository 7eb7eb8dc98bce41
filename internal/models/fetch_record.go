package models

import "time"

// Outcome is the result of one fetch attempt
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped" // local file is up to date
	OutcomeFetched Outcome = "fetched" // remote file downloaded and written
	OutcomeFailed  Outcome = "failed"  // download or write failed
)

// FetchRecord describes a single firing of the fetch task
type FetchRecord struct {
	AttemptID   string
	URL         string
	Destination string
	Outcome     Outcome
	Bytes       int64
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns how long the attempt took
func (r *FetchRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
