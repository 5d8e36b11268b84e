package domain

import "time"

// CycleReport tallies the outcome of one pipeline cycle.
type CycleReport struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Fetched      int           `json:"fetched"`
	Inserted     int           `json:"inserted"`
	Duplicates   int           `json:"duplicates"`
	Skipped      int           `json:"skipped"`
	InsertErrors int           `json:"insert_errors"`
	Processed    int           `json:"processed"`
	Published    int           `json:"published"`
	Drafted      int           `json:"drafted"`
	Failed       int           `json:"failed"`
	UsedSample   bool          `json:"used_sample"`
}
