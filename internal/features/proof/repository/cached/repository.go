package cached

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"media-notary-backend/internal/common/cache"
	"media-notary-backend/internal/features/proof/models"
	"media-notary-backend/internal/features/proof/repository"
)

type cachedRepository struct {
	inner  repository.ProofRepository
	cache  *cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedRepository serves GetByOriginalHash from Redis for ttl. Upsert drops
// the cached entry after a successful write. Cache failures fall through to inner.
func NewCachedRepository(inner repository.ProofRepository, c *cache.Cache, ttl time.Duration, logger zerolog.Logger) repository.ProofRepository {
	return &cachedRepository{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func hashKey(hash string) string {
	return "hash:" + hash
}

func (r *cachedRepository) Upsert(ctx context.Context, rec *models.ProofRecord) (*models.ProofRecord, error) {
	stored, err := r.inner.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Delete(ctx, hashKey(stored.OriginalHash)); err != nil {
		r.logger.Warn().Err(err).Str("original_hash", stored.OriginalHash).Msg("Failed to invalidate cached proof")
	}
	return stored, nil
}

func (r *cachedRepository) GetByID(ctx context.Context, id string) (*models.ProofRecord, error) {
	return r.inner.GetByID(ctx, id)
}

func (r *cachedRepository) GetByOriginalHash(ctx context.Context, hash string) (*models.ProofRecord, error) {
	var rec models.ProofRecord
	found, err := r.cache.Get(ctx, hashKey(hash), &rec)
	if err != nil {
		r.logger.Warn().Err(err).Str("original_hash", hash).Msg("Proof cache read failed")
	}
	if found {
		return &rec, nil
	}

	stored, err := r.inner.GetByOriginalHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, hashKey(hash), stored, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("original_hash", hash).Msg("Proof cache write failed")
	}
	return stored, nil
}
