package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"media-notary-backend/internal/common/validation"
	proofmodels "media-notary-backend/internal/features/proof/models"
	proofrepo "media-notary-backend/internal/features/proof/repository"
	"media-notary-backend/internal/features/purchase/models"
	"media-notary-backend/internal/features/purchase/repository"
	"media-notary-backend/internal/platform/ledger"
)

// Verify records a purchase only after the claimed payment has been checked against
// the ledger. Amounts are always read from the transaction, never from the request.
func (s *purchaseService) Verify(ctx context.Context, req *models.PurchaseRequest) (*models.PurchaseResponse, error) {
	proofID := strings.TrimSpace(req.ProofRecordID)
	signature := strings.TrimSpace(req.TxSignature)
	if proofID == "" || strings.TrimSpace(req.BuyerWallet) == "" || signature == "" {
		return nil, ErrMissingFields
	}
	buyer, err := ledger.NormalizeAddress(req.BuyerWallet)
	if err != nil {
		return nil, ErrInvalidWallet
	}
	if err := validation.ValidateTxSignature(signature); err != nil {
		return nil, ErrInvalidSignature
	}

	proof, err := s.loadProof(ctx, proofID)
	if err != nil {
		return nil, err
	}
	seller, err := ledger.NormalizeAddress(proof.OwnerWallet)
	if err != nil {
		return nil, fmt.Errorf("proof %s has malformed owner wallet: %w", proof.ID, err)
	}

	log := s.logger.With().Str("proof_id", proof.ID).Str("buyer", buyer).Str("tx", signature).Logger()

	freeClaim := strings.HasPrefix(signature, s.opts.FreeSignaturePrefix)
	if freeClaim != proof.IsFree() {
		log.Warn().Bool("free_claim", freeClaim).Int64("price", proof.PriceLamports).Msg("Rejected purchase: sentinel mismatch")
		return nil, ErrSentinelMismatch
	}

	var amount int64
	if !freeClaim {
		amount, err = s.verifyPayment(ctx, signature, buyer, seller, proof.PriceLamports)
		if err != nil {
			log.Warn().Err(err).Msg("Rejected purchase")
			return nil, err
		}
	}

	token, err := newDownloadToken()
	if err != nil {
		return nil, err
	}
	purchase := &models.Purchase{
		ID:                uuid.NewString(),
		ProofRecordID:     proof.ID,
		BuyerWallet:       buyer,
		SellerWallet:      seller,
		TxSignature:       signature,
		AmountLamports:    amount,
		DownloadToken:     token,
		DownloadExpiresAt: s.now().Add(s.opts.DownloadTTL),
	}
	if err := s.repo.Create(ctx, purchase); err != nil {
		if errors.Is(err, repository.ErrDuplicateTransaction) {
			log.Warn().Msg("Rejected purchase: transaction replayed")
			return nil, ErrDuplicateTransaction
		}
		return nil, err
	}

	log.Info().Str("purchase_id", purchase.ID).Int64("amount", amount).Msg("Purchase recorded")
	return &models.PurchaseResponse{
		Success:       true,
		PurchaseID:    purchase.ID,
		DownloadToken: token,
	}, nil
}

// verifyPayment returns the amount the seller received.
func (s *purchaseService) verifyPayment(ctx context.Context, signature, buyer, seller string, price int64) (int64, error) {
	tx, err := s.txs.GetTransaction(ctx, signature)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return 0, ErrTransactionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err)
	}
	if tx.Failed {
		return 0, ErrTransactionFailed
	}
	if tx.FirstSigner() != buyer {
		return 0, ErrSignerMismatch
	}

	if buyer == seller {
		// only fees may leave the wallet on a self-purchase
		if debit := -tx.BalanceChanges[buyer]; debit > s.opts.SelfPurchaseFeeCeiling {
			return 0, ErrFeeTooHigh
		}
		return 0, nil
	}

	received := tx.BalanceChanges[seller]
	if received < price {
		return 0, ErrInsufficientTransfer
	}
	return received, nil
}

func (s *purchaseService) loadProof(ctx context.Context, id string) (*proofmodels.ProofRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProofNotFound
	}
	proof, err := s.proofs.GetByID(ctx, id)
	if errors.Is(err, proofrepo.ErrProofNotFound) {
		return nil, ErrProofNotFound
	}
	if err != nil {
		return nil, err
	}
	return proof, nil
}
