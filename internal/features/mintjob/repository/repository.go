package repository

import (
	"context"
	"errors"
	"time"

	"media-notary-backend/internal/features/mintjob/models"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrLeaseHeld   = errors.New("worker lease is held by another process")
	ErrLeaseLost   = errors.New("worker lease lost")
)

// Retention bounds how long terminal jobs stay queryable.
type Retention struct {
	CompletedAge  time.Duration
	CompletedKeep int
	FailedAge     time.Duration
}

// Lease is the process-wide worker lock. Only the holder may lease jobs.
type Lease interface {
	AcquireLease(ctx context.Context, owner string, ttl time.Duration) error
	RenewLease(ctx context.Context, owner string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, owner string) error
}

// JobRepository is the durable job queue and status store.
type JobRepository interface {
	Lease

	Enqueue(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)

	// Next moves the oldest waiting job to active. It returns nil, nil when
	// nothing arrived within timeout.
	Next(ctx context.Context, timeout time.Duration) (*models.Job, error)
	// RecoverActive requeues jobs left active by a crashed worker.
	RecoverActive(ctx context.Context) (int, error)
	// PromoteDelayed requeues delayed jobs whose backoff has elapsed.
	PromoteDelayed(ctx context.Context, now time.Time) (int, error)

	// UpdateProgress never lowers the stored progress.
	UpdateProgress(ctx context.Context, id string, progress int) error
	SaveCheckpoint(ctx context.Context, id string, cp *models.Checkpoint) error

	Complete(ctx context.Context, id string, result *models.Result, now time.Time) error
	Retry(ctx context.Context, id string, reason string, readyAt time.Time) error
	Fail(ctx context.Context, id string, reason string, now time.Time) error

	// Sweep purges terminal jobs outside the retention window.
	Sweep(ctx context.Context, now time.Time, retention Retention) (int, error)
}
