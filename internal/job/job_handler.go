package job

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshu-sajeev/orchestrator/common"
	"github.com/joshu-sajeev/orchestrator/internal/auth"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/dto"
	"github.com/joshu-sajeev/orchestrator/middleware"
)

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes mounts the job endpoints under /jobs. Every route needs a
// valid access token; create, retry and cancel also need a writer role.
func RegisterRoutes(r gin.IRouter, h JobHandlerInterface, v auth.Verifier) {
	jobs := r.Group("/jobs", middleware.Authenticate(v))
	writers := middleware.RequireRole(config.WriterRoles...)

	jobs.POST("", writers, h.Create)
	jobs.GET("", h.List)
	jobs.GET("/:id", h.Get)
	jobs.POST("/:id/retry", writers, h.Retry)
	jobs.POST("/:id/cancel", writers, h.Cancel)
}

func (h *JobHandler) Create(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateJob(c.Request.Context(), tenantID, &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, dto.Success(resp))
}

func (h *JobHandler) List(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	var q dto.ListJobsQuery
	if !middleware.BindQuery(c, &q) {
		c.Abort()
		return
	}

	page, err := h.service.ListJobs(c.Request.Context(), tenantID, q.Page, q.Size)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, dto.ListResponse{
		Status:     "success",
		Data:       page.Items,
		Pagination: page.Pagination,
	})
}

func (h *JobHandler) Get(c *gin.Context) {
	h.byID(c, h.service.GetJob)
}

func (h *JobHandler) Retry(c *gin.Context) {
	h.byID(c, h.service.RetryJob)
}

func (h *JobHandler) Cancel(c *gin.Context) {
	h.byID(c, h.service.CancelJob)
}

type jobAction func(ctx context.Context, id, tenantID string) (*dto.JobResponse, error)

func (h *JobHandler) byID(c *gin.Context, action jobAction) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		c.Abort()
		return
	}

	resp, err := action(c.Request.Context(), id.String(), tenantID)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, dto.Success(resp))
}

func tenantOf(c *gin.Context) (string, bool) {
	id, ok := middleware.IdentityFrom(c)
	if !ok || id.TenantID == "" {
		c.Error(common.Errf(http.StatusUnauthorized, "not authenticated"))
		c.Abort()
		return "", false
	}
	return id.TenantID, true
}
