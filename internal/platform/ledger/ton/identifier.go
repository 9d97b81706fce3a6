package ton

import (
	"encoding/hex"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"media-notary-backend/internal/platform/ledger"
)

// Deriver computes NFT item addresses of a collection without any network access.
type Deriver struct {
	itemCode *cell.Cell
}

func NewDeriver(itemCode *cell.Cell) *Deriver {
	return &Deriver{itemCode: itemCode}
}

// ParseItemCode decodes the hex BOC of the collection's item contract code.
func ParseItemCode(hexBOC string) (*cell.Cell, error) {
	raw, err := hex.DecodeString(hexBOC)
	if err != nil {
		return nil, ledger.Fatal(fmt.Errorf("item code is not hex: %w", err))
	}
	code, err := cell.FromBOC(raw)
	if err != nil {
		return nil, ledger.Fatal(fmt.Errorf("item code is not a BOC: %w", err))
	}
	return code, nil
}

// DeriveIdentifier returns the address the collection deploys item index to.
// It mirrors the standard collection's state init: data = (index:uint64, collection:MsgAddress).
func (d *Deriver) DeriveIdentifier(tree string, index uint64) (string, error) {
	collection, err := parseAddress(tree)
	if err != nil {
		return "", err
	}

	data := cell.BeginCell().
		MustStoreUInt(index, 64).
		MustStoreAddr(collection).
		EndCell()

	stateInit, err := tlb.ToCell(&tlb.StateInit{Code: d.itemCode, Data: data})
	if err != nil {
		return "", ledger.Fatal(fmt.Errorf("build state init: %w", err))
	}

	return address.NewAddress(0, byte(collection.Workchain()), stateInit.Hash()).String(), nil
}

func parseAddress(s string) (*address.Address, error) {
	if addr, err := address.ParseAddr(s); err == nil {
		return addr, nil
	}
	addr, err := address.ParseRawAddr(s)
	if err != nil {
		return nil, ledger.Fatal(fmt.Errorf("invalid address %q: %w", s, err))
	}
	return addr, nil
}
