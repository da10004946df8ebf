package job

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/joshu-sajeev/orchestrator/common"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/dto"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	queuedMessage    = "Queued"
	cancelledMessage = "Cancelled"
)

type JobService struct {
	store    Store
	pub      Publisher
	notifier Notifier
	now      func() time.Time
}

func NewJobService(store Store, pub Publisher, notifier Notifier) *JobService {
	return &JobService{
		store:    store,
		pub:      pub,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ JobServiceInterface = (*JobService)(nil)

// CreateJob validates the job type and params, stores a pending job and
// publishes exactly one queue message for it. When publishing fails the job
// stays pending and the caller gets a transport error naming the job id.
func (s *JobService) CreateJob(ctx context.Context, tenantID string, req *dto.CreateJobRequest) (*dto.JobResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	if !req.JobType.Valid() {
		return nil, common.ValidationError("invalid job type", map[string]any{
			"provided": req.JobType,
			"allowed":  config.AllowedJobTypes,
		})
	}

	if err := validateParams(req.JobType, req.Params); err != nil {
		return nil, err
	}

	job := models.Job{
		TenantID: tenantID,
		JobType:  req.JobType,
		Status:   config.JobStatusPending,
		Progress: 0,
		Message:  queuedMessage,
	}
	if len(req.Params) > 0 && string(req.Params) != "null" {
		job.Params = datatypes.JSON(req.Params)
	}

	if err := s.store.Insert(ctx, &job); err != nil {
		return nil, storeError(err, "create job")
	}

	log.Info().Str("job_id", job.ID).Str("tenant_id", tenantID).Str("job_type", string(job.JobType)).Msg("job created")

	if err := s.enqueue(ctx, job.ID); err != nil {
		return nil, err
	}

	return dto.ToJobResponse(&job), nil
}

// ListJobs returns one page of the tenant's jobs, newest first. A page below
// 1 is treated as 1; size defaults to 20 and is capped at 100.
func (s *JobService) ListJobs(ctx context.Context, tenantID string, page, size int) (*dto.JobPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	page, size = normalizePage(page, size)

	jobs, total, err := s.store.FindByTenant(ctx, tenantID, page, size)
	if err != nil {
		return nil, storeError(err, "list jobs")
	}

	items := make([]dto.JobResponse, len(jobs))
	for i := range jobs {
		items[i] = *dto.ToJobResponse(&jobs[i])
	}

	pages := int((total + int64(size) - 1) / int64(size))
	return &dto.JobPage{
		Items:      items,
		Pagination: dto.Pagination{Total: total, Page: page, Size: size, Pages: pages},
	}, nil
}

func (s *JobService) GetJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error) {
	job, err := s.load(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}
	return dto.ToJobResponse(job), nil
}

// RetryJob resets a failed or completed job to pending and publishes it
// again. created_at is preserved.
func (s *JobService) RetryJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error) {
	job, err := s.load(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if !job.Status.Terminal() {
		return nil, common.InvalidStateError("only failed or completed jobs can be retried", map[string]any{
			"status": job.Status,
		})
	}

	update := models.JobUpdate{
		Status:   models.Ptr(config.JobStatusPending),
		Progress: models.Ptr(0),
		Message:  models.Ptr(queuedMessage),
		Reset:    true,
	}

	ok, err := s.store.Transition(ctx, job.ID, config.TerminalStatuses, update)
	if err != nil {
		return nil, storeError(err, "retry job")
	}
	if !ok {
		return nil, common.InvalidStateError("job is no longer failed or completed", nil)
	}

	job.Apply(update)
	job.UpdatedAt = s.now()
	log.Info().Str("job_id", job.ID).Str("tenant_id", tenantID).Msg("job retried")

	s.notifier.ProvisioningStatus(ctx, tenantID, config.JobStatusPending, 0, queuedMessage)

	if err := s.enqueue(ctx, job.ID); err != nil {
		return nil, err
	}

	return dto.ToJobResponse(job), nil
}

// CancelJob marks a pending or running job failed. A running executor is not
// interrupted; its own terminal write becomes a no-op.
func (s *JobService) CancelJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error) {
	job, err := s.load(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	if job.Status.Terminal() {
		return nil, common.InvalidStateError("job is already finished", map[string]any{
			"status": job.Status,
		})
	}

	now := s.now()
	update := models.JobUpdate{
		Status:      models.Ptr(config.JobStatusFailed),
		Message:     models.Ptr(cancelledMessage),
		Error:       models.Ptr(config.CancelledByUser),
		CompletedAt: &now,
	}

	ok, err := s.store.Transition(ctx, job.ID, config.ActiveStatuses, update)
	if err != nil {
		return nil, storeError(err, "cancel job")
	}
	if !ok {
		return nil, common.InvalidStateError("job is already finished", nil)
	}

	job.Apply(update)
	job.UpdatedAt = now
	log.Info().Str("job_id", job.ID).Str("tenant_id", tenantID).Msg("job cancelled")

	s.notifier.ProvisioningFailed(ctx, tenantID, config.CancelledByUser)

	return dto.ToJobResponse(job), nil
}

// load fetches a job owned by tenantID. Jobs of other tenants are reported
// as missing.
func (s *JobService) load(ctx context.Context, id, tenantID string) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "get job")
	}
	if job.TenantID != tenantID {
		return nil, common.NotFoundError("job not found")
	}
	return job, nil
}

func (s *JobService) enqueue(ctx context.Context, jobID string) error {
	if err := s.pub.Publish(ctx, jobID); err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("job left pending, publish failed")
		return common.TransportError("job saved but could not be queued", map[string]any{
			"job_id": jobID,
		})
	}
	return nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size < 1:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}

func storeError(err error, action string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return common.NotFoundError("job not found")
	default:
		log.Error().Err(err).Str("action", action).Msg("job store error")
		return common.Errf(http.StatusInternalServerError, "failed to %s", action)
	}
}
