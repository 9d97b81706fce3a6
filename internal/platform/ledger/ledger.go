// Package ledger holds the types shared by ledger clients and their consumers.
package ledger

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

var (
	// ErrFatal marks malformed input that no retry can fix.
	ErrFatal = errors.New("fatal ledger error")

	ErrTransactionNotFound = errors.New("transaction not found")
)

// Fatal wraps err so that IsFatal reports true for it.
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// MintResult is returned once the mint is durably confirmed.
// The leaf assigned to the minted asset is PostCounter-1.
type MintResult struct {
	TxSignature string
	PostCounter uint64
}

// Transaction is the part of a ledger transaction the purchase verifier inspects.
// Addresses are normalized with NormalizeAddress.
type Transaction struct {
	Signature      string
	Failed         bool
	Signers        []string
	BalanceChanges map[string]int64
}

// FirstSigner returns the fee payer, or "" for transactions nobody signed.
func (t *Transaction) FirstSigner() string {
	if len(t.Signers) == 0 {
		return ""
	}
	return t.Signers[0]
}

// NormalizeAddress converts user-friendly and raw account addresses to the raw
// "<workchain>:<hex>" form so that the two notations compare equal.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if addr, err := address.ParseAddr(s); err == nil {
		return addr.StringRaw(), nil
	}
	addr, err := address.ParseRawAddr(strings.ToLower(s))
	if err != nil {
		return "", Fatal(fmt.Errorf("invalid address %q: %w", s, err))
	}
	return addr.StringRaw(), nil
}
