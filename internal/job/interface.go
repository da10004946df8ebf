package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/dto"
	"github.com/joshu-sajeev/orchestrator/internal/models"
)

// Store is the job persistence the dispatcher needs.
type Store interface {
	Insert(ctx context.Context, job *models.Job) error
	FindByID(ctx context.Context, id string) (*models.Job, error)
	FindByTenant(ctx context.Context, tenantID string, page, size int) ([]models.Job, int64, error)
	Transition(ctx context.Context, id string, from []config.JobStatus, u models.JobUpdate) (bool, error)
}

// Publisher enqueues a job reference for the worker pool.
type Publisher interface {
	Publish(ctx context.Context, jobID string) error
}

// Notifier pushes job state changes to the tenant's connected clients.
type Notifier interface {
	ProvisioningStatus(ctx context.Context, tenantID string, status config.JobStatus, progress int, message string)
	ProvisioningFailed(ctx context.Context, tenantID, errMsg string)
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, tenantID string, req *dto.CreateJobRequest) (*dto.JobResponse, error)
	ListJobs(ctx context.Context, tenantID string, page, size int) (*dto.JobPage, error)
	GetJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error)
	RetryJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error)
	CancelJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	List(c *gin.Context)
	Get(c *gin.Context)
	Retry(c *gin.Context)
	Cancel(c *gin.Context)
}
