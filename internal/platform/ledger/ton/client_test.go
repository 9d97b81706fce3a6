package ton

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/nft"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"media-notary-backend/internal/platform/ledger"
)

type fakeCollection struct {
	mu        sync.Mutex
	next      int64
	mintIndex *big.Int
	mintURI   string
	err       error
}

func (f *fakeCollection) GetCollectionData(ctx context.Context) (*nft.CollectionData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &nft.CollectionData{NextItemIndex: big.NewInt(f.next)}, nil
}

func (f *fakeCollection) BuildMintPayload(itemIndex *big.Int, owner *address.Address, amountForward tlb.Coins, content nft.ContentAny) (*cell.Cell, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mintIndex = itemIndex
	if off, ok := content.(*nft.ContentOffchain); ok {
		f.mintURI = off.URI
	}
	return cell.BeginCell().EndCell(), nil
}

func (f *fakeCollection) advance() {
	f.mu.Lock()
	f.next++
	f.mu.Unlock()
}

type fakeWallet struct {
	buildErr error
	built    *tlb.ExternalMessage
}

func (f *fakeWallet) BuildExternalMessageForMany(ctx context.Context, messages []*wallet.Message) (*tlb.ExternalMessage, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	f.built = &tlb.ExternalMessage{
		DstAddr: messages[0].InternalMessage.DstAddr,
		Body:    cell.BeginCell().MustStoreUInt(7, 32).EndCell(),
	}
	return f.built, nil
}

type fakeSender struct {
	onSend func()
	err    error
	sent   int
}

func (f *fakeSender) SendExternalMessage(ctx context.Context, msg *tlb.ExternalMessage) error {
	f.sent++
	if f.onSend != nil {
		f.onSend()
	}
	return f.err
}

func newTestClient(coll *fakeCollection, s *fakeSender) (*Client, *fakeWallet) {
	w := &fakeWallet{}
	return &Client{
		Deriver:        NewDeriver(testItemCode()),
		collection:     coll,
		wallet:         w,
		sender:         s,
		collectionAddr: testCollection(1),
		mintAmount:     tlb.MustFromTON("0.05"),
		forwardAmount:  tlb.MustFromTON("0.01"),
		confirmTimeout: time.Second,
		pollInterval:   5 * time.Millisecond,
		logger:         zerolog.Nop(),
	}, w
}

func TestFetchCounter(t *testing.T) {
	c, _ := newTestClient(&fakeCollection{next: 12}, &fakeSender{})

	n, err := c.FetchCounter(context.Background(), c.TreeAddress())
	require.NoError(t, err)
	assert.Equal(t, uint64(12), n)

	_, err = c.FetchCounter(context.Background(), testCollection(2).String())
	assert.True(t, ledger.IsFatal(err))
}

func TestFetchCounterNetworkErrorIsRetryable(t *testing.T) {
	c, _ := newTestClient(&fakeCollection{err: errors.New("lite server timeout")}, &fakeSender{})

	_, err := c.FetchCounter(context.Background(), c.TreeAddress())
	require.Error(t, err)
	assert.False(t, ledger.IsFatal(err))
}

func TestMintWaitsForCounter(t *testing.T) {
	coll := &fakeCollection{next: 4}
	c, w := newTestClient(coll, &fakeSender{onSend: func() {
		go func() {
			time.Sleep(20 * time.Millisecond)
			coll.advance()
		}()
	}})

	res, err := c.Mint(context.Background(), testCollection(5).String(), "https://meta.example.com/proofs/a.json")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.PostCounter)
	assert.Equal(t, hex.EncodeToString(w.built.NormalizedHash()), res.TxSignature)
	assert.Equal(t, c.collectionAddr.StringRaw(), w.built.DstAddr.StringRaw())
	assert.Equal(t, int64(4), coll.mintIndex.Int64())
	assert.Equal(t, "https://meta.example.com/proofs/a.json", coll.mintURI)
}

func TestMintConfirmationTimeout(t *testing.T) {
	c, w := newTestClient(&fakeCollection{next: 4}, &fakeSender{})
	c.confirmTimeout = 30 * time.Millisecond

	res, err := c.Mint(context.Background(), testCollection(5).String(), "u")
	require.Error(t, err)
	assert.False(t, ledger.IsFatal(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, hex.EncodeToString(w.built.NormalizedHash()), res.TxSignature)
}

func TestMintRejectsMalformedOwner(t *testing.T) {
	c, _ := newTestClient(&fakeCollection{next: 1}, &fakeSender{})

	_, err := c.Mint(context.Background(), "bad owner", "u")
	assert.True(t, ledger.IsFatal(err))
}

func TestMintSendFailureKeepsMessageHash(t *testing.T) {
	sender := &fakeSender{err: errors.New("lite server closed connection")}
	c, w := newTestClient(&fakeCollection{next: 1}, sender)

	res, err := c.Mint(context.Background(), testCollection(5).String(), "u")
	require.Error(t, err)
	assert.False(t, ledger.IsFatal(err))
	assert.Equal(t, 1, sender.sent)
	require.NotNil(t, w.built)
	assert.Equal(t, hex.EncodeToString(w.built.NormalizedHash()), res.TxSignature)
	assert.Contains(t, err.Error(), res.TxSignature)
}

func TestMintBuildFailureSendsNothing(t *testing.T) {
	sender := &fakeSender{}
	c, w := newTestClient(&fakeCollection{next: 1}, sender)
	w.buildErr = errors.New("seqno lookup failed")

	res, err := c.Mint(context.Background(), testCollection(5).String(), "u")
	require.Error(t, err)
	assert.False(t, ledger.IsFatal(err))
	assert.Empty(t, res.TxSignature)
	assert.Zero(t, sender.sent)
}
