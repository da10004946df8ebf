package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"github.com/joshu-sajeev/orchestrator/internal/worker"
	"gorm.io/gorm"
)

type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

var _ worker.TenantStore = (*TenantRepository)(nil)

func (r *TenantRepository) Get(ctx context.Context, id string) (*models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("tenant not found: %w", err)
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}

func (r *TenantRepository) SetStatus(ctx context.Context, id string, status config.TenantStatus) error {
	return r.set(ctx, id, "status", status)
}

// SetSiteURL stores the tenant's ERPNext site URL; an empty url clears it.
func (r *TenantRepository) SetSiteURL(ctx context.Context, id, url string) error {
	var value any
	if url != "" {
		value = url
	}
	return r.set(ctx, id, "erpnext_site_url", value)
}

func (r *TenantRepository) set(ctx context.Context, id, column string, value any) error {
	res := r.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", id).
		Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update tenant %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("tenant not found: %w", gorm.ErrRecordNotFound)
	}
	return nil
}
