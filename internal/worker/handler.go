package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joshu-sajeev/orchestrator/internal/dto"
	"github.com/joshu-sajeev/orchestrator/internal/storage/objectstore"
	"github.com/rs/zerolog/log"
)

// ArtifactStore keeps backup artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// SimulatedProvisioner stands in for the ERPNext bench. Each step sleeps for
// stepDelay; backups write a manifest to the artifact store.
type SimulatedProvisioner struct {
	baseDomain string
	stepDelay  time.Duration
	artifacts  ArtifactStore
	now        func() time.Time
}

func NewSimulatedProvisioner(baseDomain string, stepDelay time.Duration, artifacts ArtifactStore) *SimulatedProvisioner {
	return &SimulatedProvisioner{
		baseDomain: baseDomain,
		stepDelay:  stepDelay,
		artifacts:  artifacts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ Provisioner = (*SimulatedProvisioner)(nil)

// SiteURL is the public address of a tenant's ERPNext site.
func SiteURL(slug, baseDomain string) string {
	return fmt.Sprintf("https://%s.%s", slug, strings.TrimPrefix(baseDomain, "."))
}

func (p *SimulatedProvisioner) CreateSite(ctx context.Context, t Task, r Reporter) (Result, error) {
	var params dto.CreateSiteParams
	if err := decodeParams(t, &params); err != nil {
		return Result{}, err
	}
	if len(params.Apps) == 0 {
		params.Apps = []string{"erpnext"}
	}

	if err := p.step(ctx, r, 80, "Creating site database"); err != nil {
		return Result{}, err
	}
	if err := p.step(ctx, r, 90, "Installing apps: "+strings.Join(params.Apps, ", ")); err != nil {
		return Result{}, err
	}

	url := SiteURL(t.Tenant.Slug, p.baseDomain)
	log.Info().Str("tenant_id", t.Tenant.ID).Str("site_url", url).Strs("apps", params.Apps).Msg("site created")
	return Result{SiteURL: url}, nil
}

func (p *SimulatedProvisioner) DeleteSite(ctx context.Context, t Task, r Reporter) (Result, error) {
	var params dto.DeleteSiteParams
	if err := decodeParams(t, &params); err != nil {
		return Result{}, err
	}

	var res Result
	if params.KeepBackup {
		key, err := p.backup(ctx, t, r, 80, false)
		if err != nil {
			return Result{}, err
		}
		res.ArtifactKey = key
	}

	if err := p.step(ctx, r, 90, "Dropping site"); err != nil {
		return Result{}, err
	}

	log.Info().Str("tenant_id", t.Tenant.ID).Bool("keep_backup", params.KeepBackup).Msg("site deleted")
	return res, nil
}

func (p *SimulatedProvisioner) BackupSite(ctx context.Context, t Task, r Reporter) (Result, error) {
	var params dto.BackupSiteParams
	if err := decodeParams(t, &params); err != nil {
		return Result{}, err
	}

	key, err := p.backup(ctx, t, r, 80, params.IncludeFiles)
	if err != nil {
		return Result{}, err
	}
	return Result{ArtifactKey: key}, nil
}

type backupManifest struct {
	TenantID     string    `json:"tenant_id"`
	Slug         string    `json:"slug"`
	JobID        string    `json:"job_id"`
	SiteURL      string    `json:"site_url,omitempty"`
	IncludeFiles bool      `json:"include_files"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p *SimulatedProvisioner) backup(ctx context.Context, t Task, r Reporter, progress int, includeFiles bool) (string, error) {
	if err := p.step(ctx, r, progress, "Dumping database"); err != nil {
		return "", err
	}

	body, err := json.Marshal(backupManifest{
		TenantID:     t.Tenant.ID,
		Slug:         t.Tenant.Slug,
		JobID:        t.JobID,
		SiteURL:      t.Tenant.SiteURL(),
		IncludeFiles: includeFiles,
		CreatedAt:    p.now(),
	})
	if err != nil {
		return "", fmt.Errorf("encode backup manifest: %w", err)
	}

	key := objectstore.BackupKey(t.Tenant.ID, t.JobID)
	if err := p.artifacts.Put(ctx, key, body, "application/json"); err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	if err := r.Report(ctx, progress+5, "Backup uploaded"); err != nil {
		return "", err
	}
	return key, nil
}

func (p *SimulatedProvisioner) step(ctx context.Context, r Reporter, progress int, message string) error {
	select {
	case <-time.After(p.stepDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return r.Report(ctx, progress, message)
}

func decodeParams(t Task, dest any) error {
	if len(t.Params) == 0 || string(t.Params) == "null" {
		return nil
	}
	if err := json.Unmarshal(t.Params, dest); err != nil {
		return fmt.Errorf("unmarshal %s params: %w", t.JobType, err)
	}
	return nil
}
