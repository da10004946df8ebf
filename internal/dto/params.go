package dto

// CreateSiteParams are the optional parameters of a create_site job.
type CreateSiteParams struct {
	Apps []string `json:"apps" validate:"omitempty,max=20,dive,required,max=64"`
}

type DeleteSiteParams struct {
	KeepBackup bool `json:"keep_backup"`
}

type BackupSiteParams struct {
	IncludeFiles bool `json:"include_files"`
}
