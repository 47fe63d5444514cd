// internal/model/job.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// JobSource identifies where a print request came from
type JobSource string

const (
	JobSourceBridge JobSource = "bridge"
	JobSourceEvent  JobSource = "event"
	JobSourceAPI    JobSource = "api"
	JobSourceSample JobSource = "sample"
)

// JobStatus represents the outcome of a print job
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusPrinted  JobStatus = "printed"
	JobStatusFailed   JobStatus = "failed"
	JobStatusRejected JobStatus = "rejected"
)

// PrintJob is a journal record of one print request
type PrintJob struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	Source       JobSource     `json:"source" db:"source"`
	Transport    TransportType `json:"transport" db:"transport"`
	Status       JobStatus     `json:"status" db:"status"`
	Bytes        int           `json:"bytes" db:"bytes"`
	Reconnected  bool          `json:"reconnected" db:"reconnected"`
	ErrorMessage *string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	DurationMs   *int          `json:"duration_ms,omitempty" db:"duration_ms"`
}

// NewPrintJob creates a pending job
func NewPrintJob(source JobSource) *PrintJob {
	return &PrintJob{
		ID:        uuid.New(),
		Source:    source,
		Transport: TransportNone,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
}

// Complete stamps the final status, duration and error on the job
func (j *PrintJob) Complete(status JobStatus, err error) {
	now := time.Now()
	duration := int(now.Sub(j.CreatedAt).Milliseconds())
	j.Status = status
	j.CompletedAt = &now
	j.DurationMs = &duration
	if err != nil {
		msg := err.Error()
		j.ErrorMessage = &msg
	}
}

// PrintResult is returned to callers of the dispatcher
type PrintResult struct {
	JobID       uuid.UUID     `json:"job_id"`
	Transport   TransportType `json:"transport"`
	Bytes       int           `json:"bytes"`
	Reconnected bool          `json:"reconnected"`
	Message     string        `json:"message"`
}
