// internal/repository/memory_repository.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pos-print-bridge/internal/model"
)

// DefaultMemoryCapacity bounds the in-memory journal
const DefaultMemoryCapacity = 500

// memoryJobRepository keeps the most recent jobs in memory when no database is configured
type memoryJobRepository struct {
	mu       sync.RWMutex
	jobs     map[uuid.UUID]*model.PrintJob
	order    []uuid.UUID
	capacity int
}

// NewMemoryJobRepository creates a bounded in-memory job repository
func NewMemoryJobRepository(capacity int) JobRepository {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &memoryJobRepository{
		jobs:     make(map[uuid.UUID]*model.PrintJob),
		capacity: capacity,
	}
}

func (r *memoryJobRepository) Create(ctx context.Context, job *model.PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("print job already exists: %s", job.ID)
	}

	copied := *job
	r.jobs[job.ID] = &copied
	r.order = append(r.order, job.ID)

	// evict oldest
	for len(r.order) > r.capacity {
		delete(r.jobs, r.order[0])
		r.order = r.order[1:]
	}
	return nil
}

func (r *memoryJobRepository) Update(ctx context.Context, job *model.PrintJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *memoryJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, exists := r.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	copied := *job
	return &copied, nil
}

func (r *memoryJobRepository) List(ctx context.Context, filter *JobFilter) ([]*model.PrintJob, int, error) {
	filter.Normalize()

	r.mu.RLock()
	matched := []*model.PrintJob{}
	for _, job := range r.jobs {
		if filter.matches(job) {
			copied := *job
			matched = append(matched, &copied)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return []*model.PrintJob{}, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (r *memoryJobRepository) GetStats(ctx context.Context) (*JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := newJobStats()
	var durationSum, durationCount int
	for _, job := range r.jobs {
		stats.count(job.Status, 1)
		stats.ByTransport[job.Transport]++
		stats.BySource[job.Source]++
		if job.DurationMs != nil {
			durationSum += *job.DurationMs
			durationCount++
		}
	}
	if durationCount > 0 {
		stats.AvgDurationMs = float64(durationSum) / float64(durationCount)
	}
	return stats, nil
}

func (r *memoryJobRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	kept := r.order[:0]
	for _, id := range r.order {
		if r.jobs[id].CreatedAt.Before(olderThan) {
			delete(r.jobs, id)
			deleted++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return deleted, nil
}
