// Package memory is a process-local JobRepository for tests and single-process local runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"media-notary-backend/internal/features/mintjob/models"
	"media-notary-backend/internal/features/mintjob/repository"
)

type memoryRepository struct {
	mu        sync.Mutex
	jobs      map[string]*models.Job
	waiting   []string
	active    []string
	delayed   map[string]time.Time
	completed map[string]time.Time
	failed    map[string]time.Time

	leaseOwner  string
	leaseExpiry time.Time

	signal chan struct{}
}

func NewJobRepository() repository.JobRepository {
	return &memoryRepository{
		jobs:      make(map[string]*models.Job),
		delayed:   make(map[string]time.Time),
		completed: make(map[string]time.Time),
		failed:    make(map[string]time.Time),
		signal:    make(chan struct{}, 1),
	}
}

func (r *memoryRepository) notify() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *memoryRepository) AcquireLease(ctx context.Context, owner string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if r.leaseOwner != "" && now.Before(r.leaseExpiry) {
		return repository.ErrLeaseHeld
	}
	r.leaseOwner = owner
	r.leaseExpiry = now.Add(ttl)
	return nil
}

func (r *memoryRepository) RenewLease(ctx context.Context, owner string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if r.leaseOwner != owner || !now.Before(r.leaseExpiry) {
		return repository.ErrLeaseLost
	}
	r.leaseExpiry = now.Add(ttl)
	return nil
}

func (r *memoryRepository) ReleaseLease(ctx context.Context, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.leaseOwner == owner {
		r.leaseOwner = ""
		r.leaseExpiry = time.Time{}
	}
	return nil
}

func (r *memoryRepository) Enqueue(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	job.State = models.JobStateWaiting
	stored := *job
	stored.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = &stored
	r.waiting = append(r.waiting, job.ID)
	r.mu.Unlock()

	r.notify()
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	return clone(job), nil
}

func (r *memoryRepository) Next(ctx context.Context, timeout time.Duration) (*models.Job, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if job := r.popWaiting(); job != nil {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return r.popWaiting(), nil
		case <-r.signal:
		}
	}
}

func (r *memoryRepository) popWaiting() *models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.waiting) > 0 {
		id := r.waiting[0]
		r.waiting = r.waiting[1:]
		job, ok := r.jobs[id]
		if !ok {
			continue
		}
		r.active = append(r.active, id)
		job.State = models.JobStateActive
		job.UpdatedAt = time.Now()
		return clone(job)
	}
	return nil
}

func (r *memoryRepository) RecoverActive(ctx context.Context) (int, error) {
	r.mu.Lock()
	recovered := len(r.active)
	for _, id := range r.active {
		if job, ok := r.jobs[id]; ok {
			job.State = models.JobStateWaiting
		}
	}
	r.waiting = append(append([]string{}, r.active...), r.waiting...)
	r.active = nil
	r.mu.Unlock()

	if recovered > 0 {
		r.notify()
	}
	return recovered, nil
}

func (r *memoryRepository) PromoteDelayed(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	var due []string
	for id, readyAt := range r.delayed {
		if !readyAt.After(now) {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return r.delayed[due[i]].Before(r.delayed[due[j]]) })
	for _, id := range due {
		delete(r.delayed, id)
		if job, ok := r.jobs[id]; ok {
			job.State = models.JobStateWaiting
			job.UpdatedAt = now
			r.waiting = append(r.waiting, id)
		}
	}
	r.mu.Unlock()

	if len(due) > 0 {
		r.notify()
	}
	return len(due), nil
}

func (r *memoryRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	if progress > job.Progress {
		job.Progress = progress
		job.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memoryRepository) SaveCheckpoint(ctx context.Context, id string, cp *models.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	saved := *cp
	job.Checkpoint = &saved
	return nil
}

func (r *memoryRepository) Complete(ctx context.Context, id string, result *models.Result, now time.Time) error {
	return r.finish(id, func(job *models.Job) {
		job.State = models.JobStateCompleted
		job.Progress = 100
		saved := *result
		job.Result = &saved
		job.FailedReason = ""
		job.FinishedAt = now
		r.completed[id] = now
	})
}

func (r *memoryRepository) Retry(ctx context.Context, id string, reason string, readyAt time.Time) error {
	return r.finish(id, func(job *models.Job) {
		job.State = models.JobStateDelayed
		job.FailedReason = reason
		r.delayed[id] = readyAt
	})
}

func (r *memoryRepository) Fail(ctx context.Context, id string, reason string, now time.Time) error {
	return r.finish(id, func(job *models.Job) {
		job.State = models.JobStateFailed
		job.FailedReason = reason
		job.FinishedAt = now
		r.failed[id] = now
	})
}

func (r *memoryRepository) finish(id string, apply func(job *models.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrJobNotFound
	}
	r.active = remove(r.active, id)
	job.AttemptsMade++
	job.UpdatedAt = time.Now()
	apply(job)
	return nil
}

func (r *memoryRepository) Sweep(ctx context.Context, now time.Time, retention repository.Retention) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purge := make(map[string]struct{})
	completed := make([]string, 0, len(r.completed))
	for id, at := range r.completed {
		if at.Before(now.Add(-retention.CompletedAge)) {
			purge[id] = struct{}{}
		}
		completed = append(completed, id)
	}
	sort.Slice(completed, func(i, j int) bool { return r.completed[completed[i]].After(r.completed[completed[j]]) })
	if len(completed) > retention.CompletedKeep {
		for _, id := range completed[retention.CompletedKeep:] {
			purge[id] = struct{}{}
		}
	}
	for id, at := range r.failed {
		if at.Before(now.Add(-retention.FailedAge)) {
			purge[id] = struct{}{}
		}
	}

	for id := range purge {
		delete(r.jobs, id)
		delete(r.completed, id)
		delete(r.failed, id)
	}
	return len(purge), nil
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func clone(job *models.Job) *models.Job {
	c := *job
	if job.Result != nil {
		r := *job.Result
		c.Result = &r
	}
	if job.Checkpoint != nil {
		cp := *job.Checkpoint
		c.Checkpoint = &cp
	}
	return &c
}
