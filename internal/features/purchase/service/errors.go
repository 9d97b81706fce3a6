package service

import (
	"errors"

	apperrors "media-notary-backend/internal/common/errors"
)

var (
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidWallet        = errors.New("invalid wallet address")
	ErrInvalidSignature     = errors.New("invalid transaction signature")
	ErrProofNotFound        = errors.New("proof record not found")
	ErrSentinelMismatch     = errors.New("signature does not match content pricing")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionFailed    = errors.New("transaction failed")
	ErrSignerMismatch       = errors.New("transaction signer does not match buyer")
	ErrInsufficientTransfer = errors.New("insufficient transfer")
	ErrFeeTooHigh           = errors.New("fee too high")
	ErrDuplicateTransaction = errors.New("transaction already used")
	ErrLedgerUnavailable    = errors.New("ledger unavailable")

	ErrDownloadNotFound = errors.New("download not found")
	ErrDownloadExpired  = errors.New("download link expired")
	ErrDownloadLimit    = errors.New("download limit reached")
)

// publicErrors lists the client-facing code and message of every rejection.
var publicErrors = []struct {
	err     error
	code    apperrors.ErrorCode
	message string
}{
	{ErrMissingFields, apperrors.ErrCodeValidation, "Missing required fields"},
	{ErrInvalidWallet, apperrors.ErrCodeValidation, "Invalid wallet address"},
	{ErrInvalidSignature, apperrors.ErrCodeValidation, "Invalid transaction signature"},
	{ErrSentinelMismatch, apperrors.ErrCodeValidation, "Signature does not match content pricing"},
	{ErrTransactionFailed, apperrors.ErrCodeValidation, "Transaction failed"},
	{ErrInsufficientTransfer, apperrors.ErrCodeValidation, "Insufficient transfer"},
	{ErrFeeTooHigh, apperrors.ErrCodeValidation, "Fee too high"},
	{ErrProofNotFound, apperrors.ErrCodeNotFound, "Proof record not found"},
	{ErrTransactionNotFound, apperrors.ErrCodeNotFound, "Transaction not found"},
	{ErrDownloadNotFound, apperrors.ErrCodeNotFound, "Download not found"},
	{ErrSignerMismatch, apperrors.ErrCodeForbidden, "Transaction signer does not match buyer"},
	{ErrDuplicateTransaction, apperrors.ErrCodeConflict, "Transaction already used"},
	{ErrDownloadExpired, apperrors.ErrCodeExpired, "Download link expired"},
	{ErrDownloadLimit, apperrors.ErrCodeRateLimit, "Download limit reached"},
	{ErrLedgerUnavailable, apperrors.ErrCodeExternalAPI, "Ledger unavailable"},
}

// ToAppError maps a service error onto its client-facing AppError.
// Unknown errors become INTERNAL_ERROR.
func ToAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}
	for _, pe := range publicErrors {
		if errors.Is(err, pe.err) {
			return apperrors.Wrap(err, pe.code, pe.message)
		}
	}
	return apperrors.Wrap(err, apperrors.ErrCodeInternal, "Internal server error")
}
