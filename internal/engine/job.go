package engine

import (
	"time"

	"github.com/seantiz/qdevice/internal/backend"
	"github.com/seantiz/qdevice/internal/histogram"
	"github.com/seantiz/qdevice/internal/model"
)

// now is replaceable in tests.
var now = func() time.Time { return time.Now().UTC() }

// Job is one unit of submitted work. All mutable fields are guarded by the
// owning Engine's registry lock.
type Job struct {
	id        int64
	sessionID string

	format  model.ProgramFormat
	program string
	cfg     backend.RunConfig

	status  model.JobStatus
	results *histogram.Histogram
	raw     string
	err     string
	freed   bool

	// heapIndex is the job's position in the pending queue, or -1.
	heapIndex int

	createdAt  time.Time
	queuedAt   time.Time
	startedAt  time.Time
	finishedAt time.Time
}

// ID returns the job's process-wide sequence number.
func (j *Job) ID() int64 { return j.id }

// SessionID returns the handle of the session the job was created from.
func (j *Job) SessionID() string { return j.sessionID }

// JobInfo is a snapshot of a job for outer layers.
type JobInfo struct {
	ID         int64               `json:"id"`
	SessionID  string              `json:"session_id"`
	Status     model.JobStatus     `json:"status"`
	Format     model.ProgramFormat `json:"program_format"`
	Config     backend.RunConfig   `json:"config"`
	HasProgram bool                `json:"has_program"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	QueuedAt   *time.Time          `json:"queued_at,omitempty"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Describe returns a snapshot of j taken under the registry lock.
func (e *Engine) Describe(j *Job) (JobInfo, error) {
	if j == nil {
		return JobInfo{}, invalidf("nil job")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	return JobInfo{
		ID:         j.id,
		SessionID:  j.sessionID,
		Status:     j.status,
		Format:     j.format,
		Config:     j.cfg,
		HasProgram: j.program != "",
		Error:      j.err,
		CreatedAt:  j.createdAt,
		QueuedAt:   optionalTime(j.queuedAt),
		StartedAt:  optionalTime(j.startedAt),
		FinishedAt: optionalTime(j.finishedAt),
	}, nil
}

// Check returns the job's current status. It never triggers progress.
func (e *Engine) Check(j *Job) (model.JobStatus, error) {
	if j == nil {
		return 0, invalidf("nil job")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return j.status, nil
}

// request builds the executor request. Callers hold e.mu.
func (j *Job) request() backend.Request {
	return backend.Request{
		JobID:   j.id,
		Format:  j.format.String(),
		Program: j.program,
		Config:  j.cfg,
	}
}

// recordLocked builds the terminal summary. Callers hold e.mu.
func (j *Job) recordLocked() model.JobRecord {
	rec := model.JobRecord{
		JobID:      j.id,
		SessionID:  j.sessionID,
		Status:     j.status,
		Format:     j.format,
		Shots:      j.cfg.Shots,
		Qubits:     j.cfg.Qubits,
		Error:      j.err,
		CreatedAt:  j.createdAt,
		StartedAt:  optionalTime(j.startedAt),
		FinishedAt: j.finishedAt,
	}
	if j.results != nil {
		rec.Counts = j.results.Counts()
	}
	if !j.startedAt.IsZero() {
		ms := int(j.finishedAt.Sub(j.startedAt).Milliseconds())
		rec.DurationMS = &ms
	}
	return rec
}

// setJobStatusLocked moves j to s and announces the change. Set j.err before
// moving to Done. Callers hold e.mu.
func (e *Engine) setJobStatusLocked(j *Job, s model.JobStatus) {
	j.status = s
	at := now()
	switch s {
	case model.JobQueued:
		j.queuedAt = at
	case model.JobRunning:
		j.startedAt = at
	case model.JobDone, model.JobCanceled:
		j.finishedAt = at
	}
	e.broker.Publish(model.JobEvent{JobID: j.id, Status: s, At: at})
	if s.Terminal() {
		e.broker.Close(j.id)
		outcome := s.String()
		if s == model.JobDone && j.err != "" {
			outcome = outcomeFailed
		}
		jobsTotal.WithLabelValues(outcome).Inc()
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
