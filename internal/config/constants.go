package config

import "slices"

type JobStatus string

type JobType string

type TenantStatus string

type Role string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

const (
	JobTypeCreateSite JobType = "create_site"
	JobTypeDeleteSite JobType = "delete_site"
	JobTypeBackupSite JobType = "backup_site"
)

const (
	TenantStatusPending      TenantStatus = "pending"
	TenantStatusProvisioning TenantStatus = "provisioning"
	TenantStatusActive       TenantStatus = "active"
	TenantStatusSuspended    TenantStatus = "suspended"
	TenantStatusCancelled    TenantStatus = "cancelled"
)

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ProvisioningQueue is the queue every provisioning job reference is routed to.
const ProvisioningQueue = "erpmax.provisioning"

// CancelledByUser is the error recorded on a job cancelled through the API.
const CancelledByUser = "cancelled by user"

var (
	AllowedJobTypes  = []JobType{JobTypeCreateSite, JobTypeDeleteSite, JobTypeBackupSite}
	TerminalStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed}
	ActiveStatuses   = []JobStatus{JobStatusPending, JobStatusRunning}
	WriterRoles      = []Role{RoleOwner, RoleAdmin}
)

// Terminal reports whether no further transition is possible without a retry.
func (s JobStatus) Terminal() bool {
	return slices.Contains(TerminalStatuses, s)
}

func (t JobType) Valid() bool {
	return slices.Contains(AllowedJobTypes, t)
}
