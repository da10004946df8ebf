package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job is one provisioning job. ID, TenantID and JobType never change after insert.
type Job struct {
	ID          string           `gorm:"type:uuid;primaryKey"`
	TenantID    string           `gorm:"type:uuid;not null;index:idx_provisioning_jobs_tenant_created,priority:1"`
	JobType     config.JobType   `gorm:"type:varchar(32);not null"`
	Status      config.JobStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_provisioning_jobs_status_updated,priority:1"`
	Progress    int              `gorm:"not null;default:0"`
	Message     string           `gorm:"type:varchar(500)"`
	Error       *string          `gorm:"type:text"`
	Params      datatypes.JSON   `gorm:"type:jsonb"`
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_provisioning_jobs_tenant_created,priority:2"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;index:idx_provisioning_jobs_status_updated,priority:2"`
}

func (Job) TableName() string { return "provisioning_jobs" }

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// Apply copies the fields set in u onto j so callers can return the
// post-update record without re-reading it.
func (j *Job) Apply(u JobUpdate) {
	if u.Reset {
		j.Error = nil
		j.StartedAt = nil
		j.CompletedAt = nil
	}
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.Error != nil {
		j.Error = u.Error
	}
	if u.StartedAt != nil {
		j.StartedAt = u.StartedAt
	}
	if u.CompletedAt != nil {
		j.CompletedAt = u.CompletedAt
	}
}

// JobUpdate is a partial update of a job's mutable fields. Nil fields are left untouched.
type JobUpdate struct {
	Status      *config.JobStatus
	Progress    *int
	Message     *string
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Reset clears error, started_at and completed_at before the other fields apply.
	Reset bool
}

// Columns renders u as a gorm column map.
func (u JobUpdate) Columns() map[string]any {
	cols := map[string]any{}
	if u.Reset {
		cols["error"] = nil
		cols["started_at"] = nil
		cols["completed_at"] = nil
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Progress != nil {
		cols["progress"] = *u.Progress
	}
	if u.Message != nil {
		cols["message"] = *u.Message
	}
	if u.Error != nil {
		cols["error"] = *u.Error
	}
	if u.StartedAt != nil {
		cols["started_at"] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		cols["completed_at"] = *u.CompletedAt
	}
	return cols
}

func Ptr[T any](v T) *T { return &v }
