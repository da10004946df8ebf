package worker

import (
	"errors"
	"fmt"

	"github.com/joshu-sajeev/orchestrator/internal/config"
)

// ErrJobNotRunning is returned by a Reporter when the job was cancelled or
// force-failed while the action was still in progress.
var ErrJobNotRunning = errors.New("job is no longer running")

// ExecutionError wraps the failure of a lifecycle action. Its message is what
// gets stored on the job and sent to the tenant.
type ExecutionError struct {
	JobType config.JobType
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.JobType, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
