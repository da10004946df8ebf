package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/rs/zerolog/log"
)

// StaleRunningError is recorded on jobs the sweep force-fails.
const StaleRunningError = "worker timed out"

type SweepStore interface {
	ListStaleRunning(ctx context.Context, olderThan time.Duration, limit int) ([]models.Job, error)
	ListPendingBefore(ctx context.Context, olderThan time.Duration, limit int) ([]models.Job, error)
	Transition(ctx context.Context, id string, from []config.JobStatus, u models.JobUpdate) (bool, error)
	UpdateStatus(ctx context.Context, id string, u models.JobUpdate) error
}

type Publisher interface {
	Publish(ctx context.Context, jobID string) error
}

type Notifier interface {
	ProvisioningFailed(ctx context.Context, tenantID, errMsg string)
}

// Leader decides which worker process sweeps.
type Leader interface {
	TryLead(ctx context.Context) (bool, error)
}

type SweepConfig struct {
	Interval       time.Duration
	StaleAfter     time.Duration
	RepublishAfter time.Duration
	BatchSize      int
}

// Sweeper fails jobs whose worker died and republishes jobs whose queue
// message was lost.
type Sweeper struct {
	store    SweepStore
	pub      Publisher
	notifier Notifier
	leader   Leader
	cfg      SweepConfig
	now      func() time.Time
}

// NewSweeper builds a sweeper. A nil leader means this process always sweeps.
func NewSweeper(store SweepStore, pub Publisher, notifier Notifier, leader Leader, cfg SweepConfig) *Sweeper {
	return &Sweeper{
		store:    store,
		pub:      pub,
		notifier: notifier,
		leader:   leader,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep runs one pass of both sweeps if this process is the leader.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if s.leader != nil {
		lead, err := s.leader.TryLead(ctx)
		if err != nil {
			return fmt.Errorf("leader check: %w", err)
		}
		if !lead {
			return nil
		}
	}

	return errors.Join(s.failStale(ctx), s.republishPending(ctx))
}

func (s *Sweeper) failStale(ctx context.Context) error {
	jobs, err := s.store.ListStaleRunning(ctx, s.cfg.StaleAfter, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var errs []error
	for _, j := range jobs {
		now := s.now()
		ok, err := s.store.Transition(ctx, j.ID, []config.JobStatus{config.JobStatusRunning}, models.JobUpdate{
			Status:      models.Ptr(config.JobStatusFailed),
			Message:     models.Ptr("Failed"),
			Error:       models.Ptr(StaleRunningError),
			CompletedAt: &now,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}

		log.Warn().Str("job_id", j.ID).Time("last_update", j.UpdatedAt).Msg("failed stale running job")
		s.notifier.ProvisioningFailed(ctx, j.TenantID, StaleRunningError)
	}
	return errors.Join(errs...)
}

func (s *Sweeper) republishPending(ctx context.Context) error {
	jobs, err := s.store.ListPendingBefore(ctx, s.cfg.RepublishAfter, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var errs []error
	for _, j := range jobs {
		if err := s.pub.Publish(ctx, j.ID); err != nil {
			errs = append(errs, fmt.Errorf("republish job %s: %w", j.ID, err))
			continue
		}
		// Touch updated_at so the job waits a full window before the next republish.
		if err := s.store.UpdateStatus(ctx, j.ID, models.JobUpdate{}); err != nil {
			errs = append(errs, err)
			continue
		}
		log.Info().Str("job_id", j.ID).Msg("republished pending job")
	}
	return errors.Join(errs...)
}
