package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validApp() App {
	return App{
		Name:                  "ERPMax Orchestrator",
		Environment:           "development",
		HTTPAddr:              ":8000",
		SecretKey:             "secret",
		AccessTokenTTL:        30 * time.Minute,
		LogLevel:              "info",
		MaxWorkers:            10,
		SweepInterval:         30 * time.Second,
		StaleRunningAfter:     15 * time.Minute,
		PendingRepublishAfter: 5 * time.Minute,
		SweepBatchSize:        100,
		ERPNextBaseDomain:     "erpmax.app",
	}
}

func TestLoadAppFromEnv(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func(*App) error
		expectError   bool
		errorContains string
	}{
		{
			name: "valid configuration",
			setupEnv: func(cfg *App) error {
				*cfg = validApp()
				return nil
			},
		},
		{
			name: "env processing failure",
			setupEnv: func(cfg *App) error {
				return errors.New("env: MAX_WORKERS: invalid syntax")
			},
			expectError:   true,
			errorContains: "failed to process env config",
		},
		{
			name: "default secret rejected in production",
			setupEnv: func(cfg *App) error {
				*cfg = validApp()
				cfg.Environment = "production"
				cfg.SecretKey = "change-me-in-production"
				return nil
			},
			expectError:   true,
			errorContains: "SECRET_KEY must be changed in production",
		},
		{
			name: "multiple errors are joined",
			setupEnv: func(cfg *App) error {
				*cfg = validApp()
				cfg.MaxWorkers = 0
				cfg.SweepInterval = 0
				return nil
			},
			expectError:   true,
			errorContains: "MAX_WORKERS must be at least 1; SWEEP_INTERVAL must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := envProcess
			defer func() { envProcess = original }()

			envProcess = func(ctx context.Context, v any, mus ...envconfig.Mutator) error {
				return tt.setupEnv(v.(*App))
			}

			cfg, err := LoadAppFromEnv(context.Background())
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 10, cfg.MaxWorkers)
		})
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJobType_Valid(t *testing.T) {
	assert.True(t, JobTypeCreateSite.Valid())
	assert.True(t, JobTypeBackupSite.Valid())
	assert.False(t, JobType("send_email").Valid())
	assert.False(t, JobType("").Valid())
}
