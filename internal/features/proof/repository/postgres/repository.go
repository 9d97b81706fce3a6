package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"media-notary-backend/internal/features/proof/models"
	"media-notary-backend/internal/features/proof/repository"
	"media-notary-backend/internal/platform/postgres"
)

const proofColumns = `id, original_hash, durable_metadata_uri, asset_identifier, owner_wallet,
		file_extension, price_lamports, title, description, is_public, created_at, updated_at`

type postgresRepository struct {
	db postgres.DBTX
}

func NewPostgresRepository(db postgres.DBTX) repository.ProofRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Upsert(ctx context.Context, rec *models.ProofRecord) (*models.ProofRecord, error) {
	query := `
		INSERT INTO proof_records (id, original_hash, durable_metadata_uri, asset_identifier, owner_wallet,
			file_extension, price_lamports, title, description, is_public)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (original_hash) DO UPDATE SET
			durable_metadata_uri = EXCLUDED.durable_metadata_uri,
			asset_identifier = EXCLUDED.asset_identifier,
			owner_wallet = EXCLUDED.owner_wallet,
			file_extension = EXCLUDED.file_extension,
			price_lamports = EXCLUDED.price_lamports,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			is_public = EXCLUDED.is_public,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	stored := *rec
	err := r.db.QueryRowContext(ctx, query,
		id, rec.OriginalHash, rec.DurableMetadataURI, rec.AssetIdentifier, rec.OwnerWallet,
		rec.FileExtension, rec.PriceLamports, nullable(rec.Title), nullable(rec.Description), rec.IsPublic,
	).Scan(&stored.ID, &stored.CreatedAt, &stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert proof record: %w", err)
	}

	return &stored, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id string) (*models.ProofRecord, error) {
	query := `SELECT ` + proofColumns + ` FROM proof_records WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *postgresRepository) GetByOriginalHash(ctx context.Context, hash string) (*models.ProofRecord, error) {
	query := `SELECT ` + proofColumns + ` FROM proof_records WHERE original_hash = $1`
	return r.getOne(ctx, query, hash)
}

func (r *postgresRepository) getOne(ctx context.Context, query string, arg string) (*models.ProofRecord, error) {
	var (
		rec         models.ProofRecord
		title, desc sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID, &rec.OriginalHash, &rec.DurableMetadataURI, &rec.AssetIdentifier, &rec.OwnerWallet,
		&rec.FileExtension, &rec.PriceLamports, &title, &desc, &rec.IsPublic, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrProofNotFound
		}
		return nil, fmt.Errorf("failed to get proof record: %w", err)
	}

	rec.Title = title.String
	rec.Description = desc.String
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
