package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"gorm.io/gorm"
)

// Tenant is owned by the tenant service; this module only reads it and
// moves its status as a side effect of provisioning jobs.
type Tenant struct {
	ID             string              `gorm:"type:uuid;primaryKey"`
	Name           string              `gorm:"type:varchar(255);not null"`
	Slug           string              `gorm:"type:varchar(100);not null;uniqueIndex"`
	Status         config.TenantStatus `gorm:"type:varchar(16);not null;default:'pending'"`
	ErpnextSiteURL *string             `gorm:"column:erpnext_site_url;type:varchar(500)"`
	CreatedAt      time.Time           `gorm:"autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime"`
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *Tenant) SiteURL() string {
	if t.ErpnextSiteURL == nil {
		return ""
	}
	return *t.ErpnextSiteURL
}
