package postgres

import (
	"testing"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent), // Disable logs during tests
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	// every new connection to :memory: is a fresh database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.Tenant{}, &models.Job{})
	require.NoError(t, err)

	return db
}

func seedTenant(t *testing.T, db *gorm.DB, slug string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: slug, Slug: slug, Status: config.TenantStatusPending}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func seedJob(t *testing.T, db *gorm.DB, j *models.Job) *models.Job {
	t.Helper()
	if j.Status == "" {
		j.Status = config.JobStatusPending
	}
	if j.JobType == "" {
		j.JobType = config.JobTypeCreateSite
	}
	require.NoError(t, db.Create(j).Error)
	return j
}
