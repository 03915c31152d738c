package ingest

import "fmt"

// Status is the machine-readable result of one ingestion run.
type Status string

// Statuses.
const (
	StatusSuccess   Status = "success"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
	StatusMalformed Status = "malformed"
	StatusDenied    Status = "denied"
)

// Outcome is reported once per run through the completion callback.
type Outcome struct {
	RunID   string `json:"run_id"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	// Written counts rows committed by this run.
	Written int `json:"written"`
	// Skipped counts malformed rows.
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
	// Total is the number of unique candidates in the file.
	Total       int   `json:"total"`
	ResumedFrom int   `json:"resumed_from"`
	NextOffset  int   `json:"next_offset"`
	Err         error `json:"-"`
}

// Resumable reports whether a later run can continue from NextOffset.
func (o Outcome) Resumable() bool {
	return o.Status == StatusPaused || (o.Status == StatusFailed && o.NextOffset > 0)
}

// Progress is reported after every committed batch.
type Progress struct {
	RunID     string `json:"run_id"`
	Batch     int    `json:"batch"`
	Committed int    `json:"committed"`
	Total     int    `json:"total"`
	Written   int    `json:"written"`
}

func (o Outcome) summary() string {
	return fmt.Sprintf("Imported/updated: %d. Skipped: %d. Duplicates merged: %d.", o.Written, o.Skipped, o.Duplicates)
}
