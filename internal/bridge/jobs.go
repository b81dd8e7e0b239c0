package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/dontdude/goconv/internal/domain"
)

// JobRegistry remembers which session owns each outstanding job.
type JobRegistry struct {
	// mu guards jobs. Lookups share the read lock; inserts and removals take the write lock.
	mu   sync.RWMutex
	jobs map[domain.JobID]domain.PendingJob

	now func() time.Time
}

// NewJobRegistry returns an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs: make(map[domain.JobID]domain.PendingJob),
		now:  time.Now,
	}
}

// Register records owner as the session waiting for job.
// It fails with domain.ErrDuplicateJob if job is already pending.
func (r *JobRegistry) Register(job domain.JobID, owner domain.SessionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job]; exists {
		return fmt.Errorf("register %s: %w", job, domain.ErrDuplicateJob)
	}

	r.jobs[job] = domain.PendingJob{
		JobID:        job,
		Owner:        owner,
		RegisteredAt: r.now(),
	}
	pendingJobs.Inc()
	return nil
}

// ResolveAndRemove claims job and returns its owner. The lookup and the delete
// happen under one write lock, so concurrent callers for the same job see at most
// one success.
func (r *JobRegistry) ResolveAndRemove(job domain.JobID) (domain.SessionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.jobs[job]
	if !exists {
		return "", false
	}
	delete(r.jobs, job)
	pendingJobs.Dec()
	return p.Owner, true
}

// Owner is a non-destructive lookup.
func (r *JobRegistry) Owner(job domain.JobID) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.jobs[job]
	return p.Owner, exists
}

// Len reports the number of pending jobs.
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Sweep removes jobs registered more than maxAge ago and returns them.
func (r *JobRegistry) Sweep(maxAge time.Duration) []domain.PendingJob {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []domain.PendingJob
	for id, p := range r.jobs {
		if p.RegisteredAt.Before(cutoff) {
			delete(r.jobs, id)
			expired = append(expired, p)
		}
	}
	pendingJobs.Sub(float64(len(expired)))
	return expired
}
