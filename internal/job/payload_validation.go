package job

import (
	"bytes"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/orchestrator/common"
	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/dto"
	"github.com/joshu-sajeev/orchestrator/middleware"
)

var validate = validator.New()

// validateParams checks the optional params object against the job type's
// schema. Absent or null params are accepted.
func validateParams(jobType config.JobType, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '{' {
		return common.ValidationError("params must be a JSON object", nil)
	}

	switch jobType {
	case config.JobTypeCreateSite:
		return validatePayload[dto.CreateSiteParams](trimmed)
	case config.JobTypeDeleteSite:
		return validatePayload[dto.DeleteSiteParams](trimmed)
	case config.JobTypeBackupSite:
		return validatePayload[dto.BackupSiteParams](trimmed)
	}
	return nil
}

func validatePayload[T any](raw json.RawMessage) error {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return common.ValidationError("invalid params format", nil)
	}

	if err := validate.Struct(payload); err != nil {
		return common.ValidationError("params validation failed", middleware.FormatValidationErrors(err))
	}

	return nil
}
