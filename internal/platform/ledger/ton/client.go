// Package ton implements the ledger contracts on TON: the identifier tree is an NFT
// collection, identifiers are item addresses and the counter is next_item_index.
package ton

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/nft"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"media-notary-backend/internal/common/config"
	"media-notary-backend/internal/platform/ledger"
)

type collectionAPI interface {
	GetCollectionData(ctx context.Context) (*nft.CollectionData, error)
	BuildMintPayload(itemIndex *big.Int, owner *address.Address, amountForward tlb.Coins, content nft.ContentAny) (*cell.Cell, error)
}

type walletAPI interface {
	BuildExternalMessageForMany(ctx context.Context, messages []*wallet.Message) (*tlb.ExternalMessage, error)
}

type senderAPI interface {
	SendExternalMessage(ctx context.Context, msg *tlb.ExternalMessage) error
}

type Client struct {
	*Deriver

	collection     collectionAPI
	wallet         walletAPI
	sender         senderAPI
	collectionAddr *address.Address
	mintAmount     tlb.Coins
	forwardAmount  tlb.Coins
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         zerolog.Logger
}

// Dial connects to the lite servers listed in the global config and opens the minter wallet.
func Dial(ctx context.Context, cfg config.LedgerConfig, logger zerolog.Logger) (*Client, error) {
	collectionAddr, err := parseAddress(cfg.CollectionAddress)
	if err != nil {
		return nil, err
	}
	itemCode, err := ParseItemCode(cfg.ItemCodeBOC)
	if err != nil {
		return nil, err
	}
	mintAmount, err := tlb.FromTON(cfg.MintAmount)
	if err != nil {
		return nil, ledger.Fatal(fmt.Errorf("invalid mint amount: %w", err))
	}
	forwardAmount, err := tlb.FromTON(cfg.ForwardAmount)
	if err != nil {
		return nil, ledger.Fatal(fmt.Errorf("invalid forward amount: %w", err))
	}

	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, cfg.LiteConfigURL); err != nil {
		return nil, fmt.Errorf("connect lite servers: %w", err)
	}
	api := ton.NewAPIClient(pool).WithRetry()

	w, err := wallet.FromSeed(api, strings.Fields(cfg.WalletSeed), wallet.V4R2)
	if err != nil {
		return nil, ledger.Fatal(fmt.Errorf("open wallet: %w", err))
	}

	logger.Info().
		Str("collection", collectionAddr.String()).
		Str("minter", w.Address().String()).
		Msg("TON ledger client initialized")

	return &Client{
		Deriver:        NewDeriver(itemCode),
		collection:     nft.NewCollectionClient(api, collectionAddr),
		wallet:         w,
		sender:         api,
		collectionAddr: collectionAddr,
		mintAmount:     mintAmount,
		forwardAmount:  forwardAmount,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   2 * time.Second,
		logger:         logger,
	}, nil
}

// TreeAddress is the collection this client mints into.
func (c *Client) TreeAddress() string {
	return c.collectionAddr.String()
}

func (c *Client) FetchCounter(ctx context.Context, tree string) (uint64, error) {
	if err := c.checkTree(tree); err != nil {
		return 0, err
	}
	return c.nextIndex(ctx)
}

// Mint sends the mint message for the collection's current next index and blocks
// until the collection has processed it or the confirmation timeout expires.
func (c *Client) Mint(ctx context.Context, owner, metadataURI string) (ledger.MintResult, error) {
	ownerAddr, err := parseAddress(owner)
	if err != nil {
		return ledger.MintResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	index, err := c.nextIndex(ctx)
	if err != nil {
		return ledger.MintResult{}, err
	}

	payload, err := c.collection.BuildMintPayload(new(big.Int).SetUint64(index), ownerAddr, c.forwardAmount, &nft.ContentOffchain{URI: metadataURI})
	if err != nil {
		return ledger.MintResult{}, ledger.Fatal(fmt.Errorf("build mint payload: %w", err))
	}

	ext, err := c.wallet.BuildExternalMessageForMany(ctx, []*wallet.Message{wallet.SimpleMessage(c.collectionAddr, c.mintAmount, payload)})
	if err != nil {
		return ledger.MintResult{}, fmt.Errorf("build mint message: %w", err)
	}
	// the normalized hash identifies the message whether or not the send call reports success
	signature := hex.EncodeToString(ext.NormalizedHash())

	c.logger.Info().
		Str("msg", signature).
		Uint64("index", index).
		Msg("Sending mint message")

	if err := c.sender.SendExternalMessage(ctx, ext); err != nil {
		return ledger.MintResult{TxSignature: signature}, fmt.Errorf("send mint message %s: %w", signature, err)
	}

	postCounter, err := c.awaitCounterAbove(ctx, index)
	if err != nil {
		return ledger.MintResult{TxSignature: signature}, fmt.Errorf("await confirmation of %s: %w", signature, err)
	}

	return ledger.MintResult{TxSignature: signature, PostCounter: postCounter}, nil
}

func (c *Client) nextIndex(ctx context.Context) (uint64, error) {
	data, err := c.collection.GetCollectionData(ctx)
	if err != nil {
		return 0, fmt.Errorf("get collection data: %w", err)
	}
	if data.NextItemIndex == nil || !data.NextItemIndex.IsUint64() {
		return 0, ledger.Fatal(fmt.Errorf("collection index out of range: %v", data.NextItemIndex))
	}
	return data.NextItemIndex.Uint64(), nil
}

func (c *Client) awaitCounterAbove(ctx context.Context, index uint64) (uint64, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		next, err := c.nextIndex(ctx)
		if err == nil && next > index {
			return next, nil
		}
		if err != nil {
			c.logger.Warn().Err(err).Msg("Collection poll failed")
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) checkTree(tree string) error {
	addr, err := parseAddress(tree)
	if err != nil {
		return err
	}
	if addr.StringRaw() != c.collectionAddr.StringRaw() {
		return ledger.Fatal(fmt.Errorf("client is bound to %s, not %s", c.collectionAddr, addr))
	}
	return nil
}
