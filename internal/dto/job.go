package dto

import (
	"encoding/json"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
)

type CreateJobRequest struct {
	JobType config.JobType  `json:"job_type" validate:"required"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ListJobsQuery carries the pagination query. Zero values fall back to the defaults.
type ListJobsQuery struct {
	Page int `form:"page" validate:"gte=0"`
	Size int `form:"size" validate:"gte=0"`
}

type JobResponse struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenant_id"`
	JobType     config.JobType   `json:"job_type"`
	Status      config.JobStatus `json:"status"`
	Progress    int              `json:"progress"`
	Message     *string          `json:"message"`
	Error       *string          `json:"error"`
	Params      json.RawMessage  `json:"params,omitempty"`
	StartedAt   *time.Time       `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func ToJobResponse(j *models.Job) *JobResponse {
	resp := &JobResponse{
		ID:          j.ID,
		TenantID:    j.TenantID,
		JobType:     j.JobType,
		Status:      j.Status,
		Progress:    j.Progress,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.Message != "" {
		msg := j.Message
		resp.Message = &msg
	}
	if len(j.Params) > 0 {
		resp.Params = json.RawMessage(j.Params)
	}
	return resp
}

type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Pages int   `json:"pages"`
}

type JobPage struct {
	Items []JobResponse
	Pagination
}

// Response is the success envelope for single objects.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type ListResponse struct {
	Status     string     `json:"status"`
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

func Success(data any) Response {
	return Response{Status: "success", Data: data}
}
