package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"media-notary-backend/internal/features/purchase/models"
	"media-notary-backend/internal/features/purchase/repository"
	"media-notary-backend/internal/platform/ledger"
)

// Check reports whether wallet bought the proof record. The token is only returned
// while the latest purchase can still be redeemed.
func (s *purchaseService) Check(ctx context.Context, proofRecordID, wallet string) (*models.PurchaseCheckResponse, error) {
	if strings.TrimSpace(proofRecordID) == "" || strings.TrimSpace(wallet) == "" {
		return nil, ErrMissingFields
	}
	buyer, err := ledger.NormalizeAddress(wallet)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	if _, err := uuid.Parse(proofRecordID); err != nil {
		return &models.PurchaseCheckResponse{Purchased: false}, nil
	}

	purchase, err := s.repo.FindLatestByBuyer(ctx, proofRecordID, buyer)
	if errors.Is(err, repository.ErrPurchaseNotFound) {
		return &models.PurchaseCheckResponse{Purchased: false}, nil
	}
	if err != nil {
		return nil, err
	}

	resp := &models.PurchaseCheckResponse{Purchased: true}
	if purchase.Redeemable(s.now(), s.opts.MaxDownloads) {
		resp.DownloadToken = purchase.DownloadToken
	}
	return resp, nil
}
