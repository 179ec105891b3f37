package models

import "time"

// JobStatus represents the lifecycle state of a backfill job.
// Transitions only move forward: pending -> processing -> completed/failed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// BackfillJob represents a price-history backfill job (one per schedule request).
// Rows are retained after completion; only the owning job's run mutates them.
type BackfillJob struct {
	JobID         string     `json:"jobId" db:"job_id"`
	Token         string     `json:"token" db:"token"`
	Network       Network    `json:"network" db:"network"`
	Status        JobStatus  `json:"status" db:"status"`
	CreationDate  time.Time  `json:"creationDate" db:"creation_date"`
	TotalDays     int        `json:"totalDays" db:"total_days"`
	ProcessedDays int        `json:"processedDays" db:"processed_days"`
	Error         *string    `json:"error,omitempty" db:"error"`
	StartedAt     *time.Time `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt   *time.Time `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
}

// JobUpdate carries a partial update for a backfill job.
// Nil fields are left untouched.
type JobUpdate struct {
	Status        *JobStatus
	TotalDays     *int
	ProcessedDays *int
	Error         *string
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Apply copies the non-nil fields onto job.
func (u *JobUpdate) Apply(job *BackfillJob) {
	if u.Status != nil {
		job.Status = *u.Status
	}
	if u.TotalDays != nil {
		job.TotalDays = *u.TotalDays
	}
	if u.ProcessedDays != nil {
		job.ProcessedDays = *u.ProcessedDays
	}
	if u.Error != nil {
		job.Error = u.Error
	}
	if u.StartedAt != nil {
		job.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		job.CompletedAt = u.CompletedAt
	}
}
