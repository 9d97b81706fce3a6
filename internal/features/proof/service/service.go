package service

import (
	"context"
	"errors"

	apperrors "media-notary-backend/internal/common/errors"
	"media-notary-backend/internal/common/validation"
	"media-notary-backend/internal/features/proof/models"
	"media-notary-backend/internal/features/proof/repository"
)

type ProofService interface {
	GetByOriginalHash(ctx context.Context, hash string) (*models.ProofView, error)
}

type proofService struct {
	repo repository.ProofRepository
}

func NewProofService(repo repository.ProofRepository) ProofService {
	return &proofService{repo: repo}
}

func (s *proofService) GetByOriginalHash(ctx context.Context, hash string) (*models.ProofView, error) {
	if err := validation.ValidateContentHash(hash); err != nil {
		return nil, apperrors.NewValidationError("hash", err.Error())
	}

	rec, err := s.repo.GetByOriginalHash(ctx, hash)
	if errors.Is(err, repository.ErrProofNotFound) {
		return nil, apperrors.NewNotFoundError("proof", hash)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get proof", err)
	}
	if !rec.IsPublic {
		return nil, apperrors.NewNotFoundError("proof", hash)
	}
	return rec.View(), nil
}
