package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// App holds settings shared by the api and worker binaries. Infrastructure
// packages (postgres, queue, realtime, objectstore) load their own configs.
type App struct {
	Name           string        `env:"APP_NAME,default=ERPMax Orchestrator"`
	Environment    string        `env:"ENVIRONMENT,default=development"`
	HTTPAddr       string        `env:"HTTP_ADDR,default=:8000"`
	SecretKey      string        `env:"SECRET_KEY,default=change-me-in-production"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL,default=30m"`
	LogLevel       string        `env:"LOG_LEVEL,default=info"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=10s"`

	MaxWorkers            int           `env:"MAX_WORKERS,default=10"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL,default=30s"`
	StaleRunningAfter     time.Duration `env:"STALE_RUNNING_AFTER,default=15m"`
	PendingRepublishAfter time.Duration `env:"PENDING_REPUBLISH_AFTER,default=5m"`
	SweepBatchSize        int           `env:"SWEEP_BATCH_SIZE,default=100"`

	ERPNextBaseDomain  string        `env:"ERPNEXT_BASE_DOMAIN,default=erpmax.app"`
	ProvisionStepDelay time.Duration `env:"PROVISION_STEP_DELAY,default=500ms"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadAppFromEnv(ctx context.Context) (*App, error) {
	var cfg App
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateApp(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Production reports whether the app runs with production defaults.
func (a *App) Production() bool {
	return strings.EqualFold(a.Environment, "production")
}

func validateApp(cfg *App) error {
	var errors []string

	if strings.TrimSpace(cfg.SecretKey) == "" {
		errors = append(errors, "SECRET_KEY is required")
	}
	if cfg.Production() && cfg.SecretKey == "change-me-in-production" {
		errors = append(errors, "SECRET_KEY must be changed in production")
	}
	if cfg.AccessTokenTTL <= 0 {
		errors = append(errors, "ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.MaxWorkers < 1 {
		errors = append(errors, "MAX_WORKERS must be at least 1")
	}
	if cfg.SweepInterval <= 0 {
		errors = append(errors, "SWEEP_INTERVAL must be positive")
	}
	if cfg.StaleRunningAfter <= 0 {
		errors = append(errors, "STALE_RUNNING_AFTER must be positive")
	}
	if cfg.PendingRepublishAfter <= 0 {
		errors = append(errors, "PENDING_REPUBLISH_AFTER must be positive")
	}
	if cfg.SweepBatchSize < 1 {
		errors = append(errors, "SWEEP_BATCH_SIZE must be at least 1")
	}
	if strings.TrimSpace(cfg.ERPNextBaseDomain) == "" {
		errors = append(errors, "ERPNEXT_BASE_DOMAIN is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}

	return nil
}
