package repository

import (
	"context"
	"errors"

	"media-notary-backend/internal/features/proof/models"
)

var ErrProofNotFound = errors.New("proof record not found")

type ProofRepository interface {
	// Upsert inserts rec or, when its OriginalHash already exists, overwrites the
	// mutable fields of the existing row. The stored id and timestamps are returned.
	Upsert(ctx context.Context, rec *models.ProofRecord) (*models.ProofRecord, error)
	GetByID(ctx context.Context, id string) (*models.ProofRecord, error)
	GetByOriginalHash(ctx context.Context, hash string) (*models.ProofRecord, error)
}
