package mocks

import (
	"context"

	"github.com/joshu-sajeev/orchestrator/internal/dto"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, tenantID string, req *dto.CreateJobRequest) (*dto.JobResponse, error) {
	args := m.Called(ctx, tenantID, req)

	resp, _ := args.Get(0).(*dto.JobResponse)
	return resp, args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, tenantID string, page, size int) (*dto.JobPage, error) {
	args := m.Called(ctx, tenantID, page, size)

	resp, _ := args.Get(0).(*dto.JobPage)
	return resp, args.Error(1)
}

func (m *JobServiceMock) GetJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error) {
	args := m.Called(ctx, id, tenantID)

	resp, _ := args.Get(0).(*dto.JobResponse)
	return resp, args.Error(1)
}

func (m *JobServiceMock) RetryJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error) {
	args := m.Called(ctx, id, tenantID)

	resp, _ := args.Get(0).(*dto.JobResponse)
	return resp, args.Error(1)
}

func (m *JobServiceMock) CancelJob(ctx context.Context, id, tenantID string) (*dto.JobResponse, error) {
	args := m.Called(ctx, id, tenantID)

	resp, _ := args.Get(0).(*dto.JobResponse)
	return resp, args.Error(1)
}
