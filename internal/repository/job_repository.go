// internal/repository/job_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-print-bridge/internal/database"
	"pos-print-bridge/internal/model"
)

const jobColumns = `id, source, transport, status, bytes, reconnected,
			   error_message, created_at, completed_at, duration_ms`

// jobRepository implements JobRepository on PostgreSQL
type jobRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewJobRepository creates a PostgreSQL job repository
func NewJobRepository(db *database.DB, logger *zap.Logger) JobRepository {
	return &jobRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new job
func (r *jobRepository) Create(ctx context.Context, job *model.PrintJob) error {
	query := `
		INSERT INTO print_jobs (
			id, source, transport, status, bytes, reconnected,
			error_message, created_at, completed_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.Source, job.Transport, job.Status, job.Bytes, job.Reconnected,
		job.ErrorMessage, job.CreatedAt, job.CompletedAt, job.DurationMs,
	)
	if err != nil {
		r.logger.Error("Failed to create print job", zap.Error(err))
		return fmt.Errorf("failed to create print job: %w", err)
	}

	return nil
}

// Update stores the final state of a job
func (r *jobRepository) Update(ctx context.Context, job *model.PrintJob) error {
	query := `
		UPDATE print_jobs SET
			transport = $2, status = $3, bytes = $4, reconnected = $5,
			error_message = $6, completed_at = $7, duration_ms = $8
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		job.ID, job.Transport, job.Status, job.Bytes, job.Reconnected,
		job.ErrorMessage, job.CompletedAt, job.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to update print job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}

	return nil
}

// GetByID retrieves a job by ID
func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PrintJob, error) {
	query := `SELECT ` + jobColumns + ` FROM print_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}

	return job, nil
}

// List retrieves jobs newest first with filtering and pagination
func (r *jobRepository) List(ctx context.Context, filter *JobFilter) ([]*model.PrintJob, int, error) {
	filter.Normalize()

	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	add := func(column, op string, value interface{}) {
		whereConditions = append(whereConditions, fmt.Sprintf("%s %s $%d", column, op, argIndex))
		args = append(args, value)
		argIndex++
	}

	if filter.Source != nil {
		add("source", "=", *filter.Source)
	}
	if filter.Status != nil {
		add("status", "=", *filter.Status)
	}
	if filter.Transport != nil {
		add("transport", "=", *filter.Transport)
	}
	if filter.StartDate != nil {
		add("created_at", ">=", *filter.StartDate)
	}
	if filter.EndDate != nil {
		add("created_at", "<=", *filter.EndDate)
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM print_jobs %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count print jobs: %w", err)
	}

	offset := (filter.Page - 1) * filter.PerPage
	query := fmt.Sprintf(`
		SELECT %s
		FROM print_jobs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, jobColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.PerPage, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*model.PrintJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			r.logger.Error("Failed to scan print job row", zap.Error(err))
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, total, rows.Err()
}

// GetStats aggregates the journal
func (r *jobRepository) GetStats(ctx context.Context) (*JobStats, error) {
	stats := newJobStats()

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, transport, source, COUNT(*)
		FROM print_jobs
		GROUP BY status, transport, source
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate print jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status    model.JobStatus
			transport model.TransportType
			source    model.JobSource
			n         int
		)
		if err := rows.Scan(&status, &transport, &source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan job stats: %w", err)
		}
		stats.count(status, n)
		stats.ByTransport[transport] += n
		stats.BySource[source] += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx,
		`SELECT AVG(duration_ms) FROM print_jobs WHERE duration_ms IS NOT NULL`,
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to average job duration: %w", err)
	}
	stats.AvgDurationMs = avg.Float64

	return stats, nil
}

// DeleteOlderThan removes journal rows created before olderThan
func (r *jobRepository) DeleteOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM print_jobs WHERE created_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old print jobs: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.PrintJob, error) {
	job := &model.PrintJob{}
	err := row.Scan(
		&job.ID, &job.Source, &job.Transport, &job.Status, &job.Bytes, &job.Reconnected,
		&job.ErrorMessage, &job.CreatedAt, &job.CompletedAt, &job.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
