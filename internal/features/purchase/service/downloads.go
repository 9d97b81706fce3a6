package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"media-notary-backend/internal/features/purchase/repository"
)

// Redeem consumes one download of token and returns a short-lived URL to the original.
// Every successful call counts, whether or not the URL is used. The URL is signed
// before the download is consumed, so a failed lookup or signing leaves the budget intact.
func (s *purchaseService) Redeem(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", ErrDownloadNotFound
	}

	pending, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		return "", redeemError(err)
	}

	proof, err := s.proofs.GetByID(ctx, pending.ProofRecordID)
	if err != nil {
		return "", fmt.Errorf("load proof for purchase %s: %w", pending.ID, err)
	}

	url, err := s.signer.SignedGetURL(ctx, s.opts.PrivateBucket, proof.PrivateObjectKey(), s.opts.SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign download url: %w", err)
	}

	purchase, err := s.repo.RedeemToken(ctx, token, s.now(), s.opts.MaxDownloads)
	if err != nil {
		return "", redeemError(err)
	}

	s.logger.Info().
		Str("purchase_id", purchase.ID).
		Int("download_count", purchase.DownloadCount).
		Msg("Download redeemed")
	return url, nil
}

func redeemError(err error) error {
	switch {
	case errors.Is(err, repository.ErrTokenNotFound):
		return ErrDownloadNotFound
	case errors.Is(err, repository.ErrTokenExpired):
		return ErrDownloadExpired
	case errors.Is(err, repository.ErrDownloadLimit):
		return ErrDownloadLimit
	}
	return err
}
