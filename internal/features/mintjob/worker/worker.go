// Package worker runs mint jobs one at a time. Exactly one worker may hold the queue
// lease; identifier prediction in the processor is only valid under that guarantee.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-notary-backend/internal/features/mintjob/models"
	"media-notary-backend/internal/features/mintjob/repository"
)

// Reporter lets a processor publish progress and checkpoints for the job it runs.
type Reporter interface {
	Progress(ctx context.Context, percent int) error
	Checkpoint(ctx context.Context, cp *models.Checkpoint) error
}

type Processor interface {
	Process(ctx context.Context, job *models.Job, reporter Reporter) (*models.Result, error)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Backoff returns the delay before attempt+1, doubling from base.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

type Options struct {
	Attempts      int
	BackoffBase   time.Duration
	LeaseTTL      time.Duration
	PollTimeout   time.Duration
	SweepInterval time.Duration
	Retention     repository.Retention
}

type Worker struct {
	repo      repository.JobRepository
	processor Processor
	opts      Options
	owner     string
	logger    zerolog.Logger
	now       func() time.Time
}

func New(repo repository.JobRepository, processor Processor, opts Options, logger zerolog.Logger) *Worker {
	return &Worker{
		repo:      repo,
		processor: processor,
		opts:      opts,
		owner:     uuid.NewString(),
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled or the lease is lost. A job already leased when
// ctx is cancelled runs to completion first, and the lease is renewed until it has.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.acquireLease(ctx); err != nil {
		return err
	}

	// the lease outlives ctx so that a draining job keeps it
	leaseCtx, stopLease := context.WithCancelCause(context.WithoutCancel(ctx))
	renewDone := make(chan struct{})
	go func() {
		defer close(renewDone)
		w.renewLease(leaseCtx, stopLease)
	}()
	defer func() {
		stopLease(nil)
		<-renewDone
		if w.leaseLost(leaseCtx) {
			return
		}
		if err := w.repo.ReleaseLease(context.WithoutCancel(ctx), w.owner); err != nil {
			w.logger.Error().Err(err).Msg("Failed to release worker lease")
		}
	}()

	loopCtx, stopLoop := context.WithCancelCause(ctx)
	defer stopLoop(nil)
	stopOnLoss := context.AfterFunc(leaseCtx, func() { stopLoop(context.Cause(leaseCtx)) })
	defer stopOnLoss()

	recovered, err := w.repo.RecoverActive(loopCtx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		w.logger.Warn().Int("jobs", recovered).Msg("Requeued jobs left active by a previous worker")
	}

	w.logger.Info().Str("owner", w.owner).Msg("Mint worker started")

	lastSweep := time.Time{}
	for {
		select {
		case <-loopCtx.Done():
			if w.leaseLost(leaseCtx) {
				return context.Cause(leaseCtx)
			}
			w.logger.Info().Msg("Stopping mint worker...")
			return nil
		default:
		}

		if w.opts.SweepInterval > 0 && w.now().Sub(lastSweep) >= w.opts.SweepInterval {
			w.sweep(loopCtx)
			lastSweep = w.now()
		}

		if _, err := w.processNext(loopCtx, leaseCtx); err != nil {
			if loopCtx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("Error polling mint queue")
			time.Sleep(1 * time.Second)
		}
	}
}

// ProcessNext promotes due retries, then leases and runs at most one job.
// It reports whether a job was run. It does not hold the worker lease; Run does.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	return w.processNext(ctx, context.Background())
}

func (w *Worker) processNext(ctx, leaseCtx context.Context) (bool, error) {
	if _, err := w.repo.PromoteDelayed(ctx, w.now()); err != nil {
		return false, err
	}

	job, err := w.repo.Next(ctx, w.opts.PollTimeout)
	if err != nil || job == nil {
		return false, err
	}

	// a leased job is never cancelled mid-flight
	w.handle(context.WithoutCancel(ctx), leaseCtx, job)
	return true, nil
}

func (w *Worker) leaseLost(leaseCtx context.Context) bool {
	return errors.Is(context.Cause(leaseCtx), repository.ErrLeaseLost)
}

func (w *Worker) handle(ctx, leaseCtx context.Context, job *models.Job) {
	attempt := job.AttemptsMade + 1
	log := w.logger.With().Str("job_id", job.ID).Int("attempt", attempt).Logger()
	log.Info().Str("original_hash", job.Payload.OriginalHash).Msg("Processing mint job")

	result, err := w.processor.Process(ctx, job, &jobReporter{repo: w.repo, jobID: job.ID})

	// the next lease holder requeues this job; recording an outcome here would race it
	if w.leaseLost(leaseCtx) {
		log.Error().AnErr("outcome", err).Msg("Worker lease lost while the job ran; leaving it to the next lease holder")
		return
	}

	if err == nil {
		if err := w.repo.Complete(ctx, job.ID, result, w.now()); err != nil {
			log.Error().Err(err).Msg("Failed to mark job completed")
			return
		}
		log.Info().Str("asset", result.AssetIdentifier).Msg("Mint job completed")
		return
	}

	if IsPermanent(err) || attempt >= w.opts.Attempts {
		if ferr := w.repo.Fail(ctx, job.ID, err.Error(), w.now()); ferr != nil {
			log.Error().Err(ferr).Msg("Failed to mark job failed")
			return
		}
		log.Error().Err(err).Bool("permanent", IsPermanent(err)).Msg("Mint job failed")
		return
	}

	delay := Backoff(w.opts.BackoffBase, attempt)
	if rerr := w.repo.Retry(ctx, job.ID, err.Error(), w.now().Add(delay)); rerr != nil {
		log.Error().Err(rerr).Msg("Failed to schedule job retry")
		return
	}
	log.Warn().Err(err).Dur("backoff", delay).Msg("Mint job attempt failed, retrying")
}

func (w *Worker) acquireLease(ctx context.Context) error {
	logged := false
	for {
		err := w.repo.AcquireLease(ctx, w.owner, w.opts.LeaseTTL)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrLeaseHeld) {
			w.logger.Error().Err(err).Msg("Failed to acquire worker lease")
		} else if !logged {
			w.logger.Info().Msg("Another mint worker holds the lease, waiting")
			logged = true
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.opts.LeaseTTL / 3):
		}
	}
}

// renewLease refreshes the lease until ctx ends. The lease counts as lost when the
// store says so or when no renewal has succeeded for a whole TTL, since another
// worker may then have acquired it.
func (w *Worker) renewLease(ctx context.Context, stop context.CancelCauseFunc) {
	ticker := time.NewTicker(w.opts.LeaseTTL / 3)
	defer ticker.Stop()

	renewed := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := w.repo.RenewLease(ctx, w.owner, w.opts.LeaseTTL)
			switch {
			case err == nil:
				renewed = time.Now()
			case errors.Is(err, repository.ErrLeaseLost):
				w.logger.Error().Msg("Worker lease lost, stopping")
				stop(err)
				return
			case ctx.Err() != nil:
				return
			case time.Since(renewed) >= w.opts.LeaseTTL:
				w.logger.Error().Err(err).Msg("Worker lease expired without renewal, stopping")
				stop(fmt.Errorf("%w: %w", repository.ErrLeaseLost, err))
				return
			default:
				w.logger.Warn().Err(err).Msg("Failed to renew worker lease")
			}
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	purged, err := w.repo.Sweep(ctx, w.now(), w.opts.Retention)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Retention sweep failed")
		return
	}
	if purged > 0 {
		w.logger.Info().Int("jobs", purged).Msg("Purged expired jobs")
	}
}

type jobReporter struct {
	repo  repository.JobRepository
	jobID string
}

func (r *jobReporter) Progress(ctx context.Context, percent int) error {
	return r.repo.UpdateProgress(ctx, r.jobID, percent)
}

func (r *jobReporter) Checkpoint(ctx context.Context, cp *models.Checkpoint) error {
	return r.repo.SaveCheckpoint(ctx, r.jobID, cp)
}
