package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxSignatureLength   = 128
	MaxPathLength        = 1024
)

var (
	contentHashRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)
	signatureRegex   = regexp.MustCompile(`^[A-Za-z0-9_\-+/=:]+$`)
)

// ValidateTitle checks an optional title; empty is allowed.
func ValidateTitle(title string) error {
	if len(strings.TrimSpace(title)) > MaxTitleLength {
		return fmt.Errorf("title cannot exceed %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateDescription checks an optional description; empty is allowed.
func ValidateDescription(description string) error {
	if len(strings.TrimSpace(description)) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return nil
}

// ValidateContentHash checks a lowercase hex sha256 digest.
func ValidateContentHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("content hash cannot be empty")
	}
	if !contentHashRegex.MatchString(hash) {
		return fmt.Errorf("content hash must be 64 lowercase hex characters")
	}
	return nil
}

// ValidateWalletAddress accepts user-friendly and raw ("0:<hex>") account addresses.
func ValidateWalletAddress(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("wallet address cannot be empty")
	}
	if _, err := address.ParseAddr(addr); err == nil {
		return nil
	}
	if _, err := address.ParseRawAddr(addr); err == nil {
		return nil
	}
	return fmt.Errorf("invalid wallet address: %s", addr)
}

// ValidateTxSignature checks the shape of a transaction reference, including free-claim sentinels.
func ValidateTxSignature(sig string) error {
	if sig == "" {
		return fmt.Errorf("transaction signature cannot be empty")
	}
	if len(sig) > MaxSignatureLength {
		return fmt.Errorf("transaction signature cannot exceed %d characters", MaxSignatureLength)
	}
	if !signatureRegex.MatchString(sig) {
		return fmt.Errorf("transaction signature contains invalid characters")
	}
	return nil
}

// ValidateMediaPath checks an object path relative to the upload bucket.
func ValidateMediaPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("media file path cannot be empty")
	}
	if len(path) > MaxPathLength {
		return fmt.Errorf("media file path cannot exceed %d characters", MaxPathLength)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("media file path must not contain '..'")
	}
	return nil
}

func ValidateNonNegativeInt(value int64, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s cannot be negative", fieldName)
	}
	return nil
}
