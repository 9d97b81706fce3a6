package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "media-notary-backend/internal/common/errors"
	"media-notary-backend/internal/features/mintjob/models"
	"media-notary-backend/internal/features/mintjob/repository"
)

// MintJobService is the producer and status side of the mint queue.
type MintJobService interface {
	Enqueue(ctx context.Context, payload *models.Payload) (string, error)
	GetStatus(ctx context.Context, jobID string) (*models.JobStatus, error)
	Purge(ctx context.Context) (int, error)
}

type mintJobService struct {
	repo      repository.JobRepository
	retention repository.Retention
	logger    zerolog.Logger
	now       func() time.Time
}

func NewMintJobService(repo repository.JobRepository, retention repository.Retention, logger zerolog.Logger) MintJobService {
	return &mintJobService{
		repo:      repo,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *mintJobService) Enqueue(ctx context.Context, payload *models.Payload) (string, error) {
	if payload == nil {
		return "", apperrors.New(apperrors.ErrCodeValidation, "payload is required")
	}
	if err := payload.Validate(); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeValidation, err.Error())
	}

	job := &models.Job{
		ID:        uuid.NewString(),
		Payload:   *payload,
		State:     models.JobStateWaiting,
		CreatedAt: s.now(),
	}
	if err := s.repo.Enqueue(ctx, job); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to enqueue mint job")
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("original_hash", payload.OriginalHash).
		Msg("Mint job enqueued")
	return job.ID, nil
}

func (s *mintJobService) GetStatus(ctx context.Context, jobID string) (*models.JobStatus, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, apperrors.NewNotFoundError("job", jobID)
	}

	job, err := s.repo.Get(ctx, jobID)
	if errors.Is(err, repository.ErrJobNotFound) {
		return nil, apperrors.NewNotFoundError("job", jobID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to load mint job")
	}
	return job.Status(), nil
}

// Purge runs one retention sweep immediately.
func (s *mintJobService) Purge(ctx context.Context) (int, error) {
	return s.repo.Sweep(ctx, s.now(), s.retention)
}
