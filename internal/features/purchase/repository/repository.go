package repository

import (
	"context"
	"errors"
	"time"

	"media-notary-backend/internal/features/purchase/models"
)

var (
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrDuplicateTransaction = errors.New("transaction already recorded")
	ErrTokenNotFound        = errors.New("download token not found")
	ErrTokenExpired         = errors.New("download token expired")
	ErrDownloadLimit        = errors.New("download limit reached")
)

type PurchaseRepository interface {
	// Create stores p and fills its CreatedAt. A second purchase with the same
	// TxSignature fails with ErrDuplicateTransaction.
	Create(ctx context.Context, p *models.Purchase) error
	FindLatestByBuyer(ctx context.Context, proofRecordID, buyerWallet string) (*models.Purchase, error)
	// FindByToken reads the purchase behind a download token without consuming it.
	FindByToken(ctx context.Context, token string) (*models.Purchase, error)
	// RedeemToken consumes one download in a single conditional update. When nothing
	// is consumed it reports ErrTokenNotFound, ErrTokenExpired or ErrDownloadLimit.
	RedeemToken(ctx context.Context, token string, now time.Time, maxDownloads int) (*models.Purchase, error)
}
