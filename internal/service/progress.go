package service

import (
	"sync"

	"github.com/trainproof/trainproof/internal/model"
)

// ProgressTracker keeps in-memory progress for jobs currently running
// in this process, so pollers never block on the validation loop. The
// database rows stay the source of truth; status queries fall back to
// them for jobs the tracker does not hold.
type ProgressTracker struct {
	mu   sync.RWMutex
	jobs map[string]*jobProgress
}

type jobProgress struct {
	status          string
	total           int
	succeeded       int
	failed          int
	cancelRequested bool
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{jobs: make(map[string]*jobProgress)}
}

func (t *ProgressTracker) StartJob(jobID string, total int, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[jobID] = &jobProgress{status: status, total: total}
}

// RecordResult folds one terminal requirement outcome into the counts.
func (t *ProgressTracker) RecordResult(jobID string, succeeded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return
	}
	if succeeded {
		p.succeeded++
	} else {
		p.failed++
	}
}

// RequestCancel flags the job for the loop to notice between
// requirements. Returns false when no live loop holds the job.
func (t *ProgressTracker) RequestCancel(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return false
	}
	p.cancelRequested = true
	return true
}

func (t *ProgressTracker) CancelRequested(jobID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.jobs[jobID]
	return ok && p.cancelRequested
}

// Snapshot returns a consistent point-in-time view. Pending is derived,
// never stored, so succeeded+failed+pending == total holds by
// construction.
func (t *ProgressTracker) Snapshot(jobID string) (model.JobStatusSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.jobs[jobID]
	if !ok {
		return model.JobStatusSnapshot{}, false
	}
	return model.JobStatusSnapshot{
		Status:    p.status,
		Total:     p.total,
		Succeeded: p.succeeded,
		Failed:    p.failed,
		Pending:   p.total - p.succeeded - p.failed,
	}, true
}

// Forget drops a finished job from the tracker. Later status queries
// read the persisted rows instead.
func (t *ProgressTracker) Forget(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, jobID)
}
