package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"media-notary-backend/internal/features/purchase/models"
	"media-notary-backend/internal/features/purchase/repository"
	"media-notary-backend/internal/platform/postgres"
)

const (
	uniqueViolation       = "23505"
	txSignatureConstraint = "purchases_tx_signature_key"
	purchaseColumns       = `id, proof_record_id, buyer_wallet, seller_wallet, tx_signature, amount_lamports,
		download_token, download_expires_at, download_count, created_at`
)

type postgresRepository struct {
	db postgres.DBTX
}

func NewPostgresRepository(db postgres.DBTX) repository.PurchaseRepository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, p *models.Purchase) error {
	query := `
		INSERT INTO purchases (id, proof_record_id, buyer_wallet, seller_wallet, tx_signature,
			amount_lamports, download_token, download_expires_at, download_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		p.ID, p.ProofRecordID, p.BuyerWallet, p.SellerWallet, p.TxSignature,
		p.AmountLamports, p.DownloadToken, p.DownloadExpiresAt, p.DownloadCount,
	).Scan(&p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == txSignatureConstraint {
			return repository.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	return nil
}

func (r *postgresRepository) FindLatestByBuyer(ctx context.Context, proofRecordID, buyerWallet string) (*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE proof_record_id = $1 AND buyer_wallet = $2
		ORDER BY created_at DESC
		LIMIT 1`

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, proofRecordID, buyerWallet))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find purchase: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) FindByToken(ctx context.Context, token string) (*models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE download_token = $1`

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find download token: %w", err)
	}
	return p, nil
}

func (r *postgresRepository) RedeemToken(ctx context.Context, token string, now time.Time, maxDownloads int) (*models.Purchase, error) {
	query := `
		UPDATE purchases
		SET download_count = download_count + 1
		WHERE download_token = $1 AND download_count < $2 AND download_expires_at >= $3
		RETURNING ` + purchaseColumns

	p, err := scanPurchase(r.db.QueryRowContext(ctx, query, token, maxDownloads, now))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to redeem download token: %w", err)
	}

	return nil, r.classifyRejected(ctx, token, now, maxDownloads)
}

// classifyRejected explains why RedeemToken updated nothing. Expiry wins over the limit.
func (r *postgresRepository) classifyRejected(ctx context.Context, token string, now time.Time, maxDownloads int) error {
	query := `SELECT download_expires_at, download_count FROM purchases WHERE download_token = $1`

	var (
		expiresAt time.Time
		count     int
	)
	err := r.db.QueryRowContext(ctx, query, token).Scan(&expiresAt, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load download token: %w", err)
	}

	if now.After(expiresAt) {
		return repository.ErrTokenExpired
	}
	return repository.ErrDownloadLimit
}

func scanPurchase(row *sql.Row) (*models.Purchase, error) {
	var p models.Purchase
	err := row.Scan(&p.ID, &p.ProofRecordID, &p.BuyerWallet, &p.SellerWallet, &p.TxSignature, &p.AmountLamports,
		&p.DownloadToken, &p.DownloadExpiresAt, &p.DownloadCount, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
