// Package repositorytest checks a JobRepository implementation against the queue semantics
// the worker relies on.
package repositorytest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-notary-backend/internal/features/mintjob/models"
	"media-notary-backend/internal/features/mintjob/repository"
)

// Factory returns an empty repository.
type Factory func(t *testing.T) repository.JobRepository

func Run(t *testing.T, newRepo Factory) {
	t.Run("EnqueueAndGet", func(t *testing.T) { testEnqueueAndGet(t, newRepo(t)) })
	t.Run("NextIsFIFO", func(t *testing.T) { testNextIsFIFO(t, newRepo(t)) })
	t.Run("ProgressNeverDecreases", func(t *testing.T) { testProgress(t, newRepo(t)) })
	t.Run("RetryPromoteFail", func(t *testing.T) { testRetryPromoteFail(t, newRepo(t)) })
	t.Run("Complete", func(t *testing.T) { testComplete(t, newRepo(t)) })
	t.Run("Checkpoint", func(t *testing.T) { testCheckpoint(t, newRepo(t)) })
	t.Run("RecoverActive", func(t *testing.T) { testRecoverActive(t, newRepo(t)) })
	t.Run("Lease", func(t *testing.T) { testLease(t, newRepo(t)) })
	t.Run("SweepRetention", func(t *testing.T) { testSweep(t, newRepo(t)) })
}

func NewJob(hash string) *models.Job {
	return &models.Job{
		ID: uuid.NewString(),
		Payload: models.Payload{
			V:             models.PayloadVersion,
			UserWallet:    "0:" + strings.Repeat("0", 64),
			OriginalHash:  hash,
			RootSigner:    "signer",
			RootCertChain: "chain",
			MediaFilePath: "uploads/a.jpg",
			Price:         1500,
			Title:         "Sunset",
		},
		CreatedAt: time.Now(),
	}
}

func enqueue(t *testing.T, repo repository.JobRepository, hash string) *models.Job {
	t.Helper()
	job := NewJob(hash)
	require.NoError(t, repo.Enqueue(context.Background(), job))
	return job
}

func next(t *testing.T, repo repository.JobRepository) *models.Job {
	t.Helper()
	job, err := repo.Next(context.Background(), time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func testEnqueueAndGet(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	job := enqueue(t, repo, strings.Repeat("a", 64))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateWaiting, got.State)
	assert.Equal(t, 0, got.Progress)
	assert.Equal(t, job.Payload, got.Payload)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobNotFound)
}

func testNextIsFIFO(t *testing.T, repo repository.JobRepository) {
	first := enqueue(t, repo, strings.Repeat("1", 64))
	second := enqueue(t, repo, strings.Repeat("2", 64))

	got := next(t, repo)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, models.JobStateActive, got.State)
	assert.Equal(t, second.ID, next(t, repo).ID)

	empty, err := repo.Next(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func testProgress(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	job := enqueue(t, repo, strings.Repeat("3", 64))

	require.NoError(t, repo.UpdateProgress(ctx, job.ID, 35))
	require.NoError(t, repo.UpdateProgress(ctx, job.ID, 15))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 35, got.Progress)

	assert.ErrorIs(t, repo.UpdateProgress(ctx, "missing", 10), repository.ErrJobNotFound)
}

func testRetryPromoteFail(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	now := time.Now()
	job := enqueue(t, repo, strings.Repeat("4", 64))
	next(t, repo)

	readyAt := now.Add(2 * time.Second)
	require.NoError(t, repo.Retry(ctx, job.ID, "lite server timeout", readyAt))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateDelayed, got.State)
	assert.Equal(t, 1, got.AttemptsMade)
	assert.Equal(t, "lite server timeout", got.FailedReason)

	n, err := repo.PromoteDelayed(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.PromoteDelayed(ctx, readyAt)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	again := next(t, repo)
	assert.Equal(t, job.ID, again.ID)

	require.NoError(t, repo.Fail(ctx, job.ID, "mint failed", now))
	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateFailed, got.State)
	assert.Equal(t, 2, got.AttemptsMade)
	assert.Equal(t, "mint failed", got.FailedReason)

	assert.ErrorIs(t, repo.Fail(ctx, "missing", "x", now), repository.ErrJobNotFound)
}

func testComplete(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	job := enqueue(t, repo, strings.Repeat("5", 64))
	next(t, repo)

	result := &models.Result{ProofRecordID: "p1", AssetIdentifier: "EQasset", MetadataURI: "https://m/x.json", TxSignature: "tx"}
	require.NoError(t, repo.Complete(ctx, job.ID, result, time.Now()))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateCompleted, got.State)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 1, got.AttemptsMade)
	assert.Equal(t, result, got.Result)
	assert.False(t, got.FinishedAt.IsZero())

	// not re-delivered
	empty, err := repo.Next(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func testCheckpoint(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	job := enqueue(t, repo, strings.Repeat("6", 64))

	cp := &models.Checkpoint{MetadataURI: "u", CandidateIdentifier: "c", AssetIdentifier: "a", TxSignature: "t"}
	require.NoError(t, repo.SaveCheckpoint(ctx, job.ID, cp))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, cp, got.Checkpoint)
}

func testRecoverActive(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	job := enqueue(t, repo, strings.Repeat("7", 64))
	next(t, repo)

	n, err := repo.RecoverActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStateWaiting, got.State)
	assert.Equal(t, job.ID, next(t, repo).ID)
}

func testLease(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	ttl := time.Minute

	require.NoError(t, repo.AcquireLease(ctx, "worker-a", ttl))
	assert.ErrorIs(t, repo.AcquireLease(ctx, "worker-b", ttl), repository.ErrLeaseHeld)
	assert.NoError(t, repo.RenewLease(ctx, "worker-a", ttl))
	assert.ErrorIs(t, repo.RenewLease(ctx, "worker-b", ttl), repository.ErrLeaseLost)

	require.NoError(t, repo.ReleaseLease(ctx, "worker-b"))
	assert.ErrorIs(t, repo.AcquireLease(ctx, "worker-b", ttl), repository.ErrLeaseHeld)

	require.NoError(t, repo.ReleaseLease(ctx, "worker-a"))
	assert.NoError(t, repo.AcquireLease(ctx, "worker-b", ttl))
}

func testSweep(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	now := time.Now()
	retention := repository.Retention{CompletedAge: time.Hour, CompletedKeep: 3, FailedAge: 24 * time.Hour}

	finish := func(hash string, at time.Time, failed bool) *models.Job {
		job := enqueue(t, repo, hash)
		next(t, repo)
		if failed {
			require.NoError(t, repo.Fail(ctx, job.ID, "boom", at))
		} else {
			require.NoError(t, repo.Complete(ctx, job.ID, &models.Result{}, at))
		}
		return job
	}

	staleCompleted := finish(strings.Repeat("8", 64), now.Add(-2*time.Hour), false)
	var recent []*models.Job
	for i := 0; i < 4; i++ {
		recent = append(recent, finish(strings.Repeat("9", 64), now.Add(time.Duration(i-10)*time.Minute), false))
	}
	staleFailed := finish(strings.Repeat("b", 64), now.Add(-25*time.Hour), true)
	freshFailed := finish(strings.Repeat("c", 64), now.Add(-time.Hour), true)

	n, err := repo.Sweep(ctx, now, retention)
	require.NoError(t, err)
	// stale completed, the oldest recent one beyond the keep cap, stale failed
	assert.Equal(t, 3, n)

	gone := []*models.Job{staleCompleted, recent[0], staleFailed}
	for _, job := range gone {
		_, err := repo.Get(ctx, job.ID)
		assert.ErrorIs(t, err, repository.ErrJobNotFound)
	}
	kept := append([]*models.Job{freshFailed}, recent[1:]...)
	for _, job := range kept {
		_, err := repo.Get(ctx, job.ID)
		assert.NoError(t, err)
	}
}
