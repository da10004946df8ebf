package worker

import (
	"context"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"gorm.io/datatypes"
)

// JobStore is the subset of job persistence the executor writes through.
type JobStore interface {
	FindByID(ctx context.Context, id string) (*models.Job, error)
	Transition(ctx context.Context, id string, from []config.JobStatus, u models.JobUpdate) (bool, error)
	AdvanceProgress(ctx context.Context, id string, progress int, message string) (bool, error)
}

type TenantStore interface {
	Get(ctx context.Context, id string) (*models.Tenant, error)
	SetStatus(ctx context.Context, id string, status config.TenantStatus) error
	SetSiteURL(ctx context.Context, id, url string) error
}

// Notifier pushes job progress to the tenant room.
type Notifier interface {
	ProvisioningStatus(ctx context.Context, tenantID string, status config.JobStatus, progress int, message string)
	ProvisioningCompleted(ctx context.Context, tenantID, erpnextURL string)
	ProvisioningFailed(ctx context.Context, tenantID, errMsg string)
}

// Task is what a provisioner needs to run one job.
type Task struct {
	JobID   string
	JobType config.JobType
	Tenant  *models.Tenant
	Params  datatypes.JSON
}

// Result carries what an action produced. Fields not relevant to the action stay empty.
type Result struct {
	SiteURL     string
	ArtifactKey string
}

// Reporter records a milestone of a running job. It returns ErrJobNotRunning
// once the job has left the running state, after which the action should stop.
type Reporter interface {
	Report(ctx context.Context, progress int, message string) error
}

// Provisioner performs the lifecycle actions against the site backend.
type Provisioner interface {
	CreateSite(ctx context.Context, t Task, r Reporter) (Result, error)
	DeleteSite(ctx context.Context, t Task, r Reporter) (Result, error)
	BackupSite(ctx context.Context, t Task, r Reporter) (Result, error)
}
