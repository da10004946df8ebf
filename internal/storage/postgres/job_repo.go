package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/job"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/joshu-sajeev/orchestrator/internal/pool"
	"github.com/joshu-sajeev/orchestrator/internal/worker"
	"gorm.io/gorm"
)

type JobRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var (
	_ job.Store       = (*JobRepository)(nil)
	_ worker.JobStore = (*JobRepository)(nil)
	_ pool.SweepStore = (*JobRepository)(nil)
)

// Insert writes a new job record. The ID is generated when empty.
func (r *JobRepository) Insert(ctx context.Context, j *models.Job) error {
	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// FindByID retrieves a single job. A missing job yields an error wrapping
// gorm.ErrRecordNotFound.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// FindByTenant returns one page of a tenant's jobs, newest first, plus the
// tenant's total job count. Jobs created in the same instant are ordered by id.
func (r *JobRepository) FindByTenant(ctx context.Context, tenantID string, page, size int) ([]models.Job, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&models.Job{}).Where("tenant_id = ?", tenantID)

	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	jobs := []models.Job{}
	if total == 0 {
		return jobs, 0, nil
	}

	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, total, nil
}

// UpdateStatus applies a partial update regardless of the job's current status.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, u models.JobUpdate) error {
	ok, err := r.update(ctx, id, nil, u)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job not found: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

// Transition applies u only while the job's status is one of from, and
// reports whether the row changed. This is the single guard that keeps
// terminal states sticky when the dispatcher and an executor race.
func (r *JobRepository) Transition(ctx context.Context, id string, from []config.JobStatus, u models.JobUpdate) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition job %s: no source status", id)
	}
	return r.update(ctx, id, from, u)
}

// AdvanceProgress records a running job's progress. Updates that would move
// progress backwards, or that arrive after the job left running, are ignored.
func (r *JobRepository) AdvanceProgress(ctx context.Context, id string, progress int, message string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ? AND progress <= ?", id, config.JobStatusRunning, progress).
		Updates(map[string]any{
			"progress":   progress,
			"message":    message,
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("advance progress: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListStaleRunning returns running jobs with no write for longer than olderThan.
func (r *JobRepository) ListStaleRunning(ctx context.Context, olderThan time.Duration, limit int) ([]models.Job, error) {
	return r.listIdle(ctx, config.JobStatusRunning, olderThan, limit)
}

// ListPendingBefore returns pending jobs untouched for longer than olderThan.
func (r *JobRepository) ListPendingBefore(ctx context.Context, olderThan time.Duration, limit int) ([]models.Job, error) {
	return r.listIdle(ctx, config.JobStatusPending, olderThan, limit)
}

func (r *JobRepository) listIdle(ctx context.Context, status config.JobStatus, olderThan time.Duration, limit int) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, r.now().Add(-olderThan)).
		Order("updated_at ASC").
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	return jobs, nil
}

func (r *JobRepository) update(ctx context.Context, id string, from []config.JobStatus, u models.JobUpdate) (bool, error) {
	cols := u.Columns()
	cols["updated_at"] = r.now()

	q := r.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}

	res := q.Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("update job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
