package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/joshu-sajeev/orchestrator/internal/storage/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	pending  = []config.JobStatus{config.JobStatusPending}
	running  = []config.JobStatus{config.JobStatusRunning}
	terminal = config.TerminalStatuses
)

func newJob(tenantID string, jobType config.JobType) *models.Job {
	return &models.Job{
		TenantID: tenantID,
		JobType:  jobType,
		Status:   config.JobStatusPending,
		Message:  "Queued",
		Params:   datatypes.JSON(`{"apps":["erpnext"]}`),
	}
}

func claimUpdate() models.JobUpdate {
	now := time.Now().UTC()
	return models.JobUpdate{
		Status:    models.Ptr(config.JobStatusRunning),
		Progress:  models.Ptr(10),
		Message:   models.Ptr("Started"),
		StartedAt: &now,
	}
}

func TestJobRepository_InsertAndFind(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	tenant := seedTenant(t, db, "acme")

	j := newJob(tenant.ID, config.JobTypeCreateSite)
	require.NoError(t, repo.Insert(ctx, j))
	require.NotEmpty(t, j.ID)

	got, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.JSONEq(t, `{"apps":["erpnext"]}`, string(got.Params))
	assert.Nil(t, got.StartedAt)

	_, err = repo.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestJobRepository_SchemaRejectsBadRows(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	tenant := seedTenant(t, db, "acme")

	bad := newJob(tenant.ID, config.JobType("reboot_site"))
	assert.Error(t, repo.Insert(ctx, bad))

	orphan := newJob("00000000-0000-0000-0000-000000000001", config.JobTypeCreateSite)
	assert.Error(t, repo.Insert(ctx, orphan))
}

func TestJobRepository_FindByTenant(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	acme := seedTenant(t, db, "acme")
	globex := seedTenant(t, db, "globex")

	var ids []string
	for range 5 {
		j := newJob(acme.ID, config.JobTypeBackupSite)
		require.NoError(t, repo.Insert(ctx, j))
		ids = append(ids, j.ID)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, repo.Insert(ctx, newJob(globex.ID, config.JobTypeBackupSite)))

	page1, total, err := repo.FindByTenant(ctx, acme.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, ids[4], page1[0].ID)
	assert.Equal(t, ids[3], page1[1].ID)

	page3, _, err := repo.FindByTenant(ctx, acme.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, ids[0], page3[0].ID)
}

func TestJobRepository_ConcurrentClaim(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	tenant := seedTenant(t, db, "acme")

	j := newJob(tenant.ID, config.JobTypeCreateSite)
	require.NoError(t, repo.Insert(ctx, j))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Transition(ctx, j.ID, pending, claimUpdate())
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestJobRepository_TerminalWins(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	tenant := seedTenant(t, db, "acme")

	j := newJob(tenant.ID, config.JobTypeCreateSite)
	require.NoError(t, repo.Insert(ctx, j))

	ok, err := repo.Transition(ctx, j.ID, pending, claimUpdate())
	require.NoError(t, err)
	require.True(t, ok)

	now := time.Now().UTC()
	ok, err = repo.Transition(ctx, j.ID, config.ActiveStatuses, models.JobUpdate{
		Status:      models.Ptr(config.JobStatusFailed),
		Message:     models.Ptr("Cancelled"),
		Error:       models.Ptr(config.CancelledByUser),
		CompletedAt: &now,
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Transition(ctx, j.ID, running, models.JobUpdate{
		Status:   models.Ptr(config.JobStatusCompleted),
		Progress: models.Ptr(100),
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusFailed, got.Status)
	assert.Equal(t, config.CancelledByUser, *got.Error)
	assert.Equal(t, 10, got.Progress)
}

func TestJobRepository_RetryResetKeepsCreatedAt(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	tenant := seedTenant(t, db, "acme")

	j := newJob(tenant.ID, config.JobTypeBackupSite)
	require.NoError(t, repo.Insert(ctx, j))
	created, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)

	_, err = repo.Transition(ctx, j.ID, pending, claimUpdate())
	require.NoError(t, err)
	now := time.Now().UTC()
	_, err = repo.Transition(ctx, j.ID, running, models.JobUpdate{
		Status: models.Ptr(config.JobStatusFailed), Error: models.Ptr("boom"), CompletedAt: &now,
	})
	require.NoError(t, err)

	ok, err := repo.Transition(ctx, j.ID, terminal, models.JobUpdate{
		Status:   models.Ptr(config.JobStatusPending),
		Progress: models.Ptr(0),
		Message:  models.Ptr("Queued"),
		Reset:    true,
	})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, config.JobStatusPending, got.Status)
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.Error)
	assert.Nil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))
}

func TestJobRepository_AdvanceProgress(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	tenant := seedTenant(t, db, "acme")

	j := newJob(tenant.ID, config.JobTypeCreateSite)
	require.NoError(t, repo.Insert(ctx, j))

	ok, err := repo.AdvanceProgress(ctx, j.ID, 50, "too early")
	require.NoError(t, err)
	assert.False(t, ok, "pending jobs do not take progress")

	_, err = repo.Transition(ctx, j.ID, pending, claimUpdate())
	require.NoError(t, err)

	steps := []struct {
		progress int
		want     bool
	}{{70, true}, {70, true}, {40, false}, {90, true}}
	for _, s := range steps {
		ok, err := repo.AdvanceProgress(ctx, j.ID, s.progress, "step")
		require.NoError(t, err)
		assert.Equal(t, s.want, ok, "progress %d", s.progress)
	}

	got, err := repo.FindByID(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, 90, got.Progress)
}

func TestJobRepository_SweepQueries(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewJobRepository(db)
	tenant := seedTenant(t, db, "acme")

	stale := newJob(tenant.ID, config.JobTypeCreateSite)
	fresh := newJob(tenant.ID, config.JobTypeCreateSite)
	lost := newJob(tenant.ID, config.JobTypeBackupSite)
	for _, j := range []*models.Job{stale, fresh, lost} {
		require.NoError(t, repo.Insert(ctx, j))
	}
	for _, j := range []*models.Job{stale, fresh} {
		_, err := repo.Transition(ctx, j.ID, pending, claimUpdate())
		require.NoError(t, err)
	}

	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Exec("UPDATE provisioning_jobs SET updated_at = ? WHERE id IN ?", old, []string{stale.ID, lost.ID}).Error)

	staleJobs, err := repo.ListStaleRunning(ctx, 15*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, staleJobs, 1)
	assert.Equal(t, stale.ID, staleJobs[0].ID)

	lostJobs, err := repo.ListPendingBefore(ctx, 5*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, lostJobs, 1)
	assert.Equal(t, lost.ID, lostJobs[0].ID)

	require.NoError(t, repo.UpdateStatus(ctx, lost.ID, models.JobUpdate{}))
	lostJobs, err = repo.ListPendingBefore(ctx, 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, lostJobs)
}

func TestTenantRepository(t *testing.T) {
	db, ctx := setupTestDB(t)
	repo := postgres.NewTenantRepository(db)
	tenant := seedTenant(t, db, "acme")

	require.NoError(t, repo.SetStatus(ctx, tenant.ID, config.TenantStatusActive))
	require.NoError(t, repo.SetSiteURL(ctx, tenant.ID, "https://acme.erpmax.app"))

	got, err := repo.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, config.TenantStatusActive, got.Status)
	assert.Equal(t, "https://acme.erpmax.app", got.SiteURL())

	require.NoError(t, repo.SetSiteURL(ctx, tenant.ID, ""))
	got, err = repo.Get(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ErpnextSiteURL)

	assert.Error(t, repo.SetStatus(ctx, tenant.ID, config.TenantStatus("archived")))

	err = repo.SetStatus(ctx, "00000000-0000-0000-0000-000000000000", config.TenantStatusActive)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestAdvisoryLock_SingleLeader(t *testing.T) {
	db, ctx := setupTestDB(t)
	other, err := postgres.ConnectDB(ctx, testConfig())
	require.NoError(t, err)
	defer closeTestDB(other)

	a := postgres.NewAdvisoryLock(db, postgres.SweepLockKey)
	b := postgres.NewAdvisoryLock(other, postgres.SweepLockKey)

	lead, err := a.TryLead(ctx)
	require.NoError(t, err)
	assert.True(t, lead)

	lead, err = a.TryLead(ctx)
	require.NoError(t, err)
	assert.True(t, lead, "the holder keeps leading")

	lead, err = b.TryLead(ctx)
	require.NoError(t, err)
	assert.False(t, lead)

	require.NoError(t, a.Release(context.Background()))

	lead, err = b.TryLead(ctx)
	require.NoError(t, err)
	assert.True(t, lead)
	require.NoError(t, b.Release(context.Background()))
}
