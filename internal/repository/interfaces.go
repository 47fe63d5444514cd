// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pos-print-bridge/internal/model"
)

// ErrJobNotFound is returned when a job ID is unknown
var ErrJobNotFound = errors.New("print job not found")

// JobRepository defines print job journal access
type JobRepository interface {
	// CRUD operations
	Create(ctx context.Context, job *model.PrintJob) error
	Update(ctx context.Context, job *model.PrintJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error)

	// Listing and reporting
	List(ctx context.Context, filter *JobFilter) ([]*model.PrintJob, int, error)
	GetStats(ctx context.Context) (*JobStats, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error)
}

// JobFilter represents job listing filters
type JobFilter struct {
	Source    *model.JobSource     `json:"source,omitempty"`
	Status    *model.JobStatus     `json:"status,omitempty"`
	Transport *model.TransportType `json:"transport,omitempty"`
	StartDate *time.Time           `json:"start_date,omitempty"`
	EndDate   *time.Time           `json:"end_date,omitempty"`
	Page      int                  `json:"page"`
	PerPage   int                  `json:"per_page"`
}

// Normalize applies paging defaults and bounds
func (f *JobFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 20
	}
	if f.PerPage > 100 {
		f.PerPage = 100
	}
}

func (f *JobFilter) matches(job *model.PrintJob) bool {
	if f.Source != nil && job.Source != *f.Source {
		return false
	}
	if f.Status != nil && job.Status != *f.Status {
		return false
	}
	if f.Transport != nil && job.Transport != *f.Transport {
		return false
	}
	if f.StartDate != nil && job.CreatedAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && job.CreatedAt.After(*f.EndDate) {
		return false
	}
	return true
}

// JobStats represents journal statistics
type JobStats struct {
	TotalJobs     int                         `json:"total_jobs"`
	PrintedJobs   int                         `json:"printed_jobs"`
	FailedJobs    int                         `json:"failed_jobs"`
	RejectedJobs  int                         `json:"rejected_jobs"`
	PendingJobs   int                         `json:"pending_jobs"`
	AvgDurationMs float64                     `json:"average_duration_ms"`
	ByTransport   map[model.TransportType]int `json:"by_transport"`
	BySource      map[model.JobSource]int     `json:"by_source"`
}

func newJobStats() *JobStats {
	return &JobStats{
		ByTransport: make(map[model.TransportType]int),
		BySource:    make(map[model.JobSource]int),
	}
}

func (s *JobStats) count(status model.JobStatus, n int) {
	s.TotalJobs += n
	switch status {
	case model.JobStatusPrinted:
		s.PrintedJobs += n
	case model.JobStatusFailed:
		s.FailedJobs += n
	case model.JobStatusRejected:
		s.RejectedJobs += n
	case model.JobStatusPending:
		s.PendingJobs += n
	}
}
