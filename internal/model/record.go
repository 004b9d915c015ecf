package model

import "time"

// JobRecord is the terminal summary of one job, written once to the history
// ledger and published on the event bus when the job reaches Done or Canceled.
type JobRecord struct {
	JobID      int64             `json:"job_id"`
	SessionID  string            `json:"session_id,omitempty"`
	Status     JobStatus         `json:"status"`
	Format     ProgramFormat     `json:"program_format"`
	Shots      uint64            `json:"shots"`
	Qubits     int32             `json:"qubits"`
	Counts     map[string]uint64 `json:"counts,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS *int              `json:"duration_ms,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
}

// JobEvent is a single status change of a job, streamed to subscribers.
type JobEvent struct {
	JobID  int64     `json:"job_id"`
	Status JobStatus `json:"status"`
	At     time.Time `json:"at"`
}
