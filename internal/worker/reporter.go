package worker

import (
	"context"
	"fmt"

	"github.com/joshu-sajeev/orchestrator/internal/config"
)

type jobReporter struct {
	jobs     JobStore
	notifier Notifier
	jobID    string
	tenantID string
}

func (r *jobReporter) Report(ctx context.Context, progress int, message string) error {
	ok, err := r.jobs.AdvanceProgress(ctx, r.jobID, progress, message)
	if err != nil {
		return fmt.Errorf("report progress: %w", err)
	}
	if !ok {
		return ErrJobNotRunning
	}

	r.notifier.ProvisioningStatus(ctx, r.tenantID, config.JobStatusRunning, progress, message)
	return nil
}
