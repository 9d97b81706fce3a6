package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	proofmodels "media-notary-backend/internal/features/proof/models"
	"media-notary-backend/internal/features/purchase/models"
	"media-notary-backend/internal/features/purchase/repository"
	"media-notary-backend/internal/platform/ledger"
)

// PurchaseService verifies payment claims and serves the downloads they grant.
type PurchaseService interface {
	Verify(ctx context.Context, req *models.PurchaseRequest) (*models.PurchaseResponse, error)
	Check(ctx context.Context, proofRecordID, wallet string) (*models.PurchaseCheckResponse, error)
	Redeem(ctx context.Context, token string) (string, error)
}

type TransactionSource interface {
	GetTransaction(ctx context.Context, signature string) (*ledger.Transaction, error)
}

type ProofReader interface {
	GetByID(ctx context.Context, id string) (*proofmodels.ProofRecord, error)
}

type URLSigner interface {
	SignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

type Options struct {
	FreeSignaturePrefix    string
	SelfPurchaseFeeCeiling int64
	DownloadTTL            time.Duration
	MaxDownloads           int
	PrivateBucket          string
	SignedURLTTL           time.Duration
}

type purchaseService struct {
	repo   repository.PurchaseRepository
	proofs ProofReader
	txs    TransactionSource
	signer URLSigner
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

func NewPurchaseService(
	repo repository.PurchaseRepository,
	proofs ProofReader,
	txs TransactionSource,
	signer URLSigner,
	opts Options,
	logger zerolog.Logger,
) PurchaseService {
	return &purchaseService{
		repo:   repo,
		proofs: proofs,
		txs:    txs,
		signer: signer,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// newDownloadToken returns 256 random bits, base64url encoded.
func newDownloadToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate download token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}
