package mocks

import (
	"context"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/stretchr/testify/mock"
)

// JobStoreMock covers the dispatcher, executor and sweeper views of the job store.
type JobStoreMock struct {
	mock.Mock
}

func (m *JobStoreMock) Insert(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobStoreMock) FindByID(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobStoreMock) FindByTenant(ctx context.Context, tenantID string, page, size int) ([]models.Job, int64, error) {
	args := m.Called(ctx, tenantID, page, size)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Get(1).(int64), args.Error(2)
}

func (m *JobStoreMock) UpdateStatus(ctx context.Context, id string, u models.JobUpdate) error {
	args := m.Called(ctx, id, u)
	return args.Error(0)
}

func (m *JobStoreMock) Transition(ctx context.Context, id string, from []config.JobStatus, u models.JobUpdate) (bool, error) {
	args := m.Called(ctx, id, from, u)
	return args.Bool(0), args.Error(1)
}

func (m *JobStoreMock) AdvanceProgress(ctx context.Context, id string, progress int, message string) (bool, error) {
	args := m.Called(ctx, id, progress, message)
	return args.Bool(0), args.Error(1)
}

func (m *JobStoreMock) ListStaleRunning(ctx context.Context, olderThan time.Duration, limit int) ([]models.Job, error) {
	args := m.Called(ctx, olderThan, limit)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobStoreMock) ListPendingBefore(ctx context.Context, olderThan time.Duration, limit int) ([]models.Job, error) {
	args := m.Called(ctx, olderThan, limit)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

type TenantStoreMock struct {
	mock.Mock
}

func (m *TenantStoreMock) Get(ctx context.Context, id string) (*models.Tenant, error) {
	args := m.Called(ctx, id)

	tenant, _ := args.Get(0).(*models.Tenant)
	return tenant, args.Error(1)
}

func (m *TenantStoreMock) SetStatus(ctx context.Context, id string, status config.TenantStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *TenantStoreMock) SetSiteURL(ctx context.Context, id, url string) error {
	args := m.Called(ctx, id, url)
	return args.Error(0)
}
