package mocks

import (
	"context"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/stretchr/testify/mock"
)

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// NotifierMock records realtime emissions. Emissions are fire-and-forget,
// so nothing is returned.
type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) ProvisioningStatus(ctx context.Context, tenantID string, status config.JobStatus, progress int, message string) {
	m.Called(ctx, tenantID, status, progress, message)
}

func (m *NotifierMock) ProvisioningCompleted(ctx context.Context, tenantID, erpnextURL string) {
	m.Called(ctx, tenantID, erpnextURL)
}

func (m *NotifierMock) ProvisioningFailed(ctx context.Context, tenantID, errMsg string) {
	m.Called(ctx, tenantID, errMsg)
}
