package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Milestones written by the executor itself. Provisioners report their own
// milestones between ProgressProcessing and 100.
const (
	ProgressStarted    = 10
	ProgressProcessing = 70
)

var running = []config.JobStatus{config.JobStatusRunning}

// Executor runs one job per queue delivery.
type Executor struct {
	jobs        JobStore
	tenants     TenantStore
	notifier    Notifier
	provisioner Provisioner
	now         func() time.Time
	// tenantRetry bounds the tenant writes that follow a completed job.
	tenantRetry func() backoff.BackOff
}

func NewExecutor(jobs JobStore, tenants TenantStore, notifier Notifier, provisioner Provisioner) *Executor {
	return &Executor{
		jobs:        jobs,
		tenants:     tenants,
		notifier:    notifier,
		provisioner: provisioner,
		now:         func() time.Time { return time.Now().UTC() },
		tenantRetry: defaultTenantRetry,
	}
}

func defaultTenantRetry() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 2 * time.Second
	exp.MaxElapsedTime = 0
	return backoff.WithMaxRetries(exp, 4)
}

// Handle claims, runs and finalizes the job. A nil return means the delivery
// can be acked; a non-nil return means it should go back to the queue.
func (e *Executor) Handle(ctx context.Context, jobID string) error {
	j, err := e.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Str("job_id", jobID).Msg("provisioning job not found")
			return nil
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if j.Status != config.JobStatusPending {
		log.Info().Str("job_id", j.ID).Str("status", string(j.Status)).Msg("skipping job")
		return nil
	}

	claimed, err := e.claim(ctx, j)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info().Str("job_id", j.ID).Msg("job claimed elsewhere, skipping")
		return nil
	}

	logger := log.With().Str("job_id", j.ID).Str("job_type", string(j.JobType)).Str("tenant_id", j.TenantID).Logger()
	logger.Info().Msg("job started")

	res, runErr := e.run(ctx, j)

	if runErr != nil && ctx.Err() != nil {
		// Shutting down: hand the job back instead of failing it.
		return e.release(ctx, j, runErr)
	}
	if runErr != nil {
		return e.fail(ctx, j, runErr)
	}
	return e.complete(ctx, j, res)
}

func (e *Executor) claim(ctx context.Context, j *models.Job) (bool, error) {
	now := e.now()
	u := models.JobUpdate{
		Status:    models.Ptr(config.JobStatusRunning),
		Progress:  models.Ptr(ProgressStarted),
		Message:   models.Ptr("Started"),
		StartedAt: &now,
	}

	ok, err := e.jobs.Transition(ctx, j.ID, []config.JobStatus{config.JobStatusPending}, u)
	if err != nil {
		return false, fmt.Errorf("claim job %s: %w", j.ID, err)
	}
	if ok {
		j.Apply(u)
		e.notifier.ProvisioningStatus(ctx, j.TenantID, config.JobStatusRunning, ProgressStarted, "Started")
	}
	return ok, nil
}

func (e *Executor) run(ctx context.Context, j *models.Job) (Result, error) {
	tenant, err := e.tenants.Get(ctx, j.TenantID)
	if err != nil {
		return Result{}, fmt.Errorf("load tenant: %w", err)
	}

	if j.JobType == config.JobTypeCreateSite {
		if err := e.tenants.SetStatus(ctx, tenant.ID, config.TenantStatusProvisioning); err != nil {
			return Result{}, fmt.Errorf("mark tenant provisioning: %w", err)
		}
	}

	r := &jobReporter{jobs: e.jobs, notifier: e.notifier, jobID: j.ID, tenantID: j.TenantID}
	if err := r.Report(ctx, ProgressProcessing, "Processing"); err != nil {
		return Result{}, err
	}

	t := Task{JobID: j.ID, JobType: j.JobType, Tenant: tenant, Params: j.Params}
	switch j.JobType {
	case config.JobTypeCreateSite:
		return e.provisioner.CreateSite(ctx, t, r)
	case config.JobTypeDeleteSite:
		// Capture the URL now; completion clears it from the tenant.
		siteURL := tenant.SiteURL()
		res, err := e.provisioner.DeleteSite(ctx, t, r)
		if err == nil && res.SiteURL == "" {
			res.SiteURL = siteURL
		}
		return res, err
	case config.JobTypeBackupSite:
		return e.provisioner.BackupSite(ctx, t, r)
	default:
		return Result{}, fmt.Errorf("unknown job type: %s", j.JobType)
	}
}

func (e *Executor) complete(ctx context.Context, j *models.Job, res Result) error {
	now := e.now()
	ok, err := e.jobs.Transition(ctx, j.ID, running, models.JobUpdate{
		Status:      models.Ptr(config.JobStatusCompleted),
		Progress:    models.Ptr(100),
		Message:     models.Ptr("Completed"),
		CompletedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("complete job %s: %w", j.ID, err)
	}
	if !ok {
		log.Warn().Str("job_id", j.ID).Msg("job left running before completion, keeping its terminal state")
		return nil
	}

	if err := e.finalizeTenant(ctx, j, res); err != nil {
		log.Error().Err(err).Str("job_id", j.ID).Str("tenant_id", j.TenantID).Msg("tenant not updated after completion")
		return err
	}

	log.Info().
		Str("job_id", j.ID).
		Str("site_url", res.SiteURL).
		Str("artifact", res.ArtifactKey).
		Msg("job completed")
	e.notifier.ProvisioningCompleted(ctx, j.TenantID, res.SiteURL)
	return nil
}

// finalizeTenant applies the tenant side effects of a completed job. The job
// row is already terminal, so a redelivery would be skipped; transient store
// errors are retried here instead.
func (e *Executor) finalizeTenant(ctx context.Context, j *models.Job, res Result) error {
	ctx = context.WithoutCancel(ctx)

	var writes []func() error
	switch j.JobType {
	case config.JobTypeCreateSite:
		writes = []func() error{
			wrap("record site url", func() error { return e.tenants.SetSiteURL(ctx, j.TenantID, res.SiteURL) }),
			wrap("activate tenant", func() error { return e.tenants.SetStatus(ctx, j.TenantID, config.TenantStatusActive) }),
		}
	case config.JobTypeDeleteSite:
		writes = []func() error{
			wrap("cancel tenant", func() error { return e.tenants.SetStatus(ctx, j.TenantID, config.TenantStatusCancelled) }),
			wrap("clear site url", func() error { return e.tenants.SetSiteURL(ctx, j.TenantID, "") }),
		}
	}

	for _, write := range writes {
		notify := func(err error, wait time.Duration) {
			log.Warn().Err(err).Str("job_id", j.ID).Dur("retry_in", wait).Msg("tenant update failed, retrying")
		}
		if err := backoff.RetryNotify(write, e.tenantRetry(), notify); err != nil {
			return err
		}
	}
	return nil
}

func wrap(op string, fn func() error) func() error {
	return func() error {
		if err := fn(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
}

func (e *Executor) fail(ctx context.Context, j *models.Job, cause error) error {
	execErr := &ExecutionError{JobType: j.JobType, Err: cause}
	msg := execErr.Error()

	now := e.now()
	ok, err := e.jobs.Transition(ctx, j.ID, running, models.JobUpdate{
		Status:      models.Ptr(config.JobStatusFailed),
		Message:     models.Ptr("Failed"),
		Error:       &msg,
		CompletedAt: &now,
	})
	if err != nil {
		return fmt.Errorf("fail job %s: %w", j.ID, err)
	}
	if !ok {
		log.Info().Str("job_id", j.ID).Err(cause).Msg("job already terminal, dropping failure")
		return nil
	}

	log.Error().Err(execErr).Str("job_id", j.ID).Msg("job failed")
	e.notifier.ProvisioningFailed(ctx, j.TenantID, msg)
	return nil
}

// release puts an interrupted job back to pending so the redelivery can claim it.
func (e *Executor) release(ctx context.Context, j *models.Job, cause error) error {
	ok, err := e.jobs.Transition(context.WithoutCancel(ctx), j.ID, running, models.JobUpdate{
		Status:   models.Ptr(config.JobStatusPending),
		Progress: models.Ptr(0),
		Message:  models.Ptr("Queued"),
		Reset:    true,
	})
	if err != nil {
		return fmt.Errorf("release job %s: %w", j.ID, err)
	}
	if ok {
		log.Warn().Str("job_id", j.ID).Err(cause).Msg("job interrupted, released to pending")
	}
	return fmt.Errorf("job %s interrupted: %w", j.ID, cause)
}
