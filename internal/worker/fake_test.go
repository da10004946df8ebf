package worker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/joshu-sajeev/orchestrator/internal/config"
	"github.com/joshu-sajeev/orchestrator/internal/models"
	"gorm.io/gorm"
)

// memJobs applies the same conditional-update rules as the postgres repository.
type memJobs struct {
	mu            sync.Mutex
	jobs          map[string]*models.Job
	findErr       error
	transitionErr error
}

func newMemJobs(jobs ...*models.Job) *memJobs {
	s := &memJobs{jobs: map[string]*models.Job{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *memJobs) FindByID(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %w", gorm.ErrRecordNotFound)
	}
	cp := *j
	return &cp, nil
}

func (s *memJobs) Transition(ctx context.Context, id string, from []config.JobStatus, u models.JobUpdate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transitionErr != nil && u.Status != nil && *u.Status != config.JobStatusRunning {
		return false, s.transitionErr
	}
	j, ok := s.jobs[id]
	if !ok || !slices.Contains(from, j.Status) {
		return false, nil
	}
	j.Apply(u)
	return true, nil
}

func (s *memJobs) AdvanceProgress(_ context.Context, id string, progress int, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != config.JobStatusRunning || j.Progress > progress {
		return false, nil
	}
	j.Progress = progress
	j.Message = message
	return true, nil
}

// cancel mimics the dispatcher's cancel write.
func (s *memJobs) cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	j.Status = config.JobStatusFailed
	j.Message = "Cancelled"
	j.Error = models.Ptr(config.CancelledByUser)
}

func (s *memJobs) snapshot(id string) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

type event struct {
	kind     string
	status   config.JobStatus
	progress int
	text     string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) ProvisioningStatus(_ context.Context, _ string, status config.JobStatus, progress int, message string) {
	n.add(event{kind: "update", status: status, progress: progress, text: message})
}

func (n *recordingNotifier) ProvisioningCompleted(_ context.Context, _ string, erpnextURL string) {
	n.add(event{kind: "completed", text: erpnextURL})
}

func (n *recordingNotifier) ProvisioningFailed(_ context.Context, _ string, errMsg string) {
	n.add(event{kind: "failed", text: errMsg})
}

func (n *recordingNotifier) add(e event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.kind)
	}
	return out
}

func (n *recordingNotifier) progress() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []int
	for _, e := range n.events {
		if e.kind == "update" {
			out = append(out, e.progress)
		}
	}
	return out
}

// stubProvisioner runs fn for every action.
type stubProvisioner struct {
	fn    func(ctx context.Context, t Task, r Reporter) (Result, error)
	calls []config.JobType
}

func (p *stubProvisioner) CreateSite(ctx context.Context, t Task, r Reporter) (Result, error) {
	return p.call(ctx, t, r)
}

func (p *stubProvisioner) DeleteSite(ctx context.Context, t Task, r Reporter) (Result, error) {
	return p.call(ctx, t, r)
}

func (p *stubProvisioner) BackupSite(ctx context.Context, t Task, r Reporter) (Result, error) {
	return p.call(ctx, t, r)
}

func (p *stubProvisioner) call(ctx context.Context, t Task, r Reporter) (Result, error) {
	p.calls = append(p.calls, t.JobType)
	if p.fn == nil {
		return Result{}, nil
	}
	return p.fn(ctx, t, r)
}

type memArtifacts struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (a *memArtifacts) Put(_ context.Context, key string, body []byte, contentType string) error {
	if a.err != nil {
		return a.err
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
		a.types = map[string]string{}
	}
	a.objects[key] = body
	a.types[key] = contentType
	return nil
}

type milestone struct {
	progress int
	message  string
}

type recordingReporter struct {
	milestones []milestone
	failAt     int
}

func (r *recordingReporter) Report(_ context.Context, progress int, message string) error {
	if r.failAt != 0 && progress >= r.failAt {
		return ErrJobNotRunning
	}
	r.milestones = append(r.milestones, milestone{progress, message})
	return nil
}

var errBackend = errors.New("bench exited with status 1")
