package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"

	proofmodels "media-notary-backend/internal/features/proof/models"
	proofrepo "media-notary-backend/internal/features/proof/repository"
	"media-notary-backend/internal/features/purchase/models"
	"media-notary-backend/internal/features/purchase/repository"
	"media-notary-backend/internal/platform/ledger"
	"media-notary-backend/internal/platform/ledger/ton"
)

type fakeRepo struct {
	mu        sync.Mutex
	bySig     map[string]*models.Purchase
	byToken   map[string]*models.Purchase
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{bySig: map[string]*models.Purchase{}, byToken: map[string]*models.Purchase{}}
}

func (r *fakeRepo) Create(ctx context.Context, p *models.Purchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.bySig[p.TxSignature]; ok {
		return repository.ErrDuplicateTransaction
	}
	stored := *p
	stored.CreatedAt = time.Now()
	r.bySig[p.TxSignature] = &stored
	r.byToken[p.DownloadToken] = &stored
	return nil
}

func (r *fakeRepo) FindLatestByBuyer(ctx context.Context, proofRecordID, buyer string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Purchase
	for _, p := range r.bySig {
		if p.ProofRecordID == proofRecordID && p.BuyerWallet == buyer && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, repository.ErrPurchaseNotFound
	}
	c := *latest
	return &c, nil
}

func (r *fakeRepo) FindByToken(ctx context.Context, token string) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byToken[token]
	if !ok {
		return nil, repository.ErrTokenNotFound
	}
	c := *p
	return &c, nil
}

// RedeemToken mirrors the conditional UPDATE: check and increment happen under one lock.
func (r *fakeRepo) RedeemToken(ctx context.Context, token string, now time.Time, maxDownloads int) (*models.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byToken[token]
	switch {
	case !ok:
		return nil, repository.ErrTokenNotFound
	case now.After(p.DownloadExpiresAt):
		return nil, repository.ErrTokenExpired
	case p.DownloadCount >= maxDownloads:
		return nil, repository.ErrDownloadLimit
	}
	p.DownloadCount++
	c := *p
	return &c, nil
}

type fakeProofs map[string]*proofmodels.ProofRecord

func (f fakeProofs) GetByID(ctx context.Context, id string) (*proofmodels.ProofRecord, error) {
	if rec, ok := f[id]; ok {
		return rec, nil
	}
	return nil, proofrepo.ErrProofNotFound
}

type fakeTxs struct {
	txs   map[string]*ledger.Transaction
	err   error
	calls int32
}

func (f *fakeTxs) GetTransaction(ctx context.Context, sig string) (*ledger.Transaction, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if tx, ok := f.txs[sig]; ok {
		return tx, nil
	}
	return nil, ledger.ErrTransactionNotFound
}

type fakeSigner struct{ err error }

func (s fakeSigner) SignedGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://s3.example/" + bucket + "/" + key + "?ttl=" + ttl.String(), nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func wallet(b byte) *address.Address {
	return address.NewAddress(0, 0, bytes.Repeat([]byte{b}, 32))
}

var (
	buyer  = wallet(0x11)
	seller = wallet(0x22)
	paidID = uuid.NewString()
	freeID = uuid.NewString()
	selfID = uuid.NewString()
)

type fixture struct {
	svc   *purchaseService
	repo  *fakeRepo
	txs   *fakeTxs
	clock *clock
}

func newFixture() *fixture {
	proofs := fakeProofs{
		paidID: {ID: paidID, OriginalHash: "aa", FileExtension: "jpg", OwnerWallet: seller.String(), PriceLamports: 1_000_000_000},
		freeID: {ID: freeID, OriginalHash: "bb", FileExtension: "png", OwnerWallet: seller.String()},
		selfID: {ID: selfID, OriginalHash: "cc", FileExtension: "mp4", OwnerWallet: buyer.String(), PriceLamports: 5},
	}
	repo := newFakeRepo()
	txs := &fakeTxs{txs: map[string]*ledger.Transaction{}}
	c := &clock{now: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}

	svc := NewPurchaseService(repo, proofs, txs, fakeSigner{}, Options{
		FreeSignaturePrefix:    "free_",
		SelfPurchaseFeeCeiling: 10_000_000,
		DownloadTTL:            24 * time.Hour,
		MaxDownloads:           10,
		PrivateBucket:          "originals",
		SignedURLTTL:           time.Hour,
	}, zerolog.Nop()).(*purchaseService)
	svc.now = c.Now

	return &fixture{svc: svc, repo: repo, txs: txs, clock: c}
}

func (f *fixture) addTx(sig string, signer *address.Address, changes map[*address.Address]int64) {
	tx := &ledger.Transaction{Signature: sig, Signers: []string{signer.StringRaw()}, BalanceChanges: map[string]int64{}}
	for a, v := range changes {
		tx.BalanceChanges[a.StringRaw()] = v
	}
	f.txs.txs[sig] = tx
}

func (f *fixture) verify(proofID, sig string) (*models.PurchaseResponse, error) {
	return f.svc.Verify(context.Background(), &models.PurchaseRequest{
		ProofRecordID: proofID,
		BuyerWallet:   buyer.String(),
		TxSignature:   sig,
	})
}

func TestVerifyFreeClaimSkipsLedger(t *testing.T) {
	f := newFixture()

	resp, err := f.verify(freeID, "free_xyz")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Len(t, resp.DownloadToken, 43)
	assert.Zero(t, atomic.LoadInt32(&f.txs.calls))

	p := f.repo.bySig["free_xyz"]
	require.NotNil(t, p)
	assert.Equal(t, buyer.StringRaw(), p.BuyerWallet)
	assert.Equal(t, seller.StringRaw(), p.SellerWallet)
	assert.Zero(t, p.AmountLamports)
	assert.Zero(t, p.DownloadCount)
	assert.Equal(t, f.clock.Now().Add(24*time.Hour), p.DownloadExpiresAt)
}

func TestVerifySentinelMismatch(t *testing.T) {
	f := newFixture()

	_, err := f.verify(freeID, "realtxhash")
	assert.ErrorIs(t, err, ErrSentinelMismatch)

	_, err = f.verify(paidID, "free_xyz")
	assert.ErrorIs(t, err, ErrSentinelMismatch)

	assert.Equal(t, http.StatusBadRequest, ToAppError(err).HTTPStatus())
	assert.Zero(t, atomic.LoadInt32(&f.txs.calls))
	assert.Empty(t, f.repo.bySig)
}

func TestVerifyPaidPurchase(t *testing.T) {
	cases := []struct {
		name     string
		received int64
		want     error
	}{
		{"exact price", 1_000_000_000, nil},
		{"overpaid", 1_500_000_000, nil},
		{"short by one", 999_999_999, ErrInsufficientTransfer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.addTx("tx1", buyer, map[*address.Address]int64{buyer: -tc.received - 5_000_000, seller: tc.received})

			resp, err := f.verify(paidID, "tx1")
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				assert.Empty(t, f.repo.bySig)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, resp.PurchaseID)
			assert.Equal(t, tc.received, f.repo.bySig["tx1"].AmountLamports)
		})
	}
}

func TestVerifySelfPurchaseFeeCeiling(t *testing.T) {
	cases := []struct {
		name string
		net  int64
		want error
	}{
		{"at ceiling", -10_000_000, nil},
		{"small fee", -4_000_000, nil},
		{"above ceiling", -10_000_001, ErrFeeTooHigh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.addTx("self", buyer, map[*address.Address]int64{buyer: tc.net})

			_, err := f.verify(selfID, "self")
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestVerifyTransactionChecks(t *testing.T) {
	t.Run("signer mismatch", func(t *testing.T) {
		f := newFixture()
		f.addTx("tx1", wallet(0x33), map[*address.Address]int64{seller: 1_000_000_000})

		_, err := f.verify(paidID, "tx1")
		assert.ErrorIs(t, err, ErrSignerMismatch)
		assert.Equal(t, http.StatusForbidden, ToAppError(err).HTTPStatus())
	})

	t.Run("failed on ledger", func(t *testing.T) {
		f := newFixture()
		f.addTx("tx1", buyer, map[*address.Address]int64{seller: 1_000_000_000})
		f.txs.txs["tx1"].Failed = true

		_, err := f.verify(paidID, "tx1")
		assert.ErrorIs(t, err, ErrTransactionFailed)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		f := newFixture()
		_, err := f.verify(paidID, "nope")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
		assert.Equal(t, http.StatusNotFound, ToAppError(err).HTTPStatus())
	})

	t.Run("ledger down", func(t *testing.T) {
		f := newFixture()
		f.txs.err = errors.New("tonapi http 502")

		_, err := f.verify(paidID, "tx1")
		assert.ErrorIs(t, err, ErrLedgerUnavailable)
		appErr := ToAppError(err)
		assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus())
		assert.True(t, appErr.IsInternal())
	})
}

func TestVerifyRejectsReplayedSignature(t *testing.T) {
	f := newFixture()
	f.addTx("tx1", buyer, map[*address.Address]int64{seller: 1_000_000_000})

	_, err := f.verify(paidID, "tx1")
	require.NoError(t, err)

	_, err = f.verify(paidID, "tx1")
	assert.ErrorIs(t, err, ErrDuplicateTransaction)
	assert.Equal(t, http.StatusConflict, ToAppError(err).HTTPStatus())
	assert.Len(t, f.repo.bySig, 1)
}

func TestVerifyInputErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Verify(ctx, &models.PurchaseRequest{ProofRecordID: paidID, BuyerWallet: buyer.String()})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = f.svc.Verify(ctx, &models.PurchaseRequest{ProofRecordID: paidID, BuyerWallet: "garbage", TxSignature: "tx1"})
	assert.ErrorIs(t, err, ErrInvalidWallet)

	_, err = f.svc.Verify(ctx, &models.PurchaseRequest{ProofRecordID: paidID, BuyerWallet: buyer.String(), TxSignature: "has space"})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = f.verify(uuid.NewString(), "free_1")
	assert.ErrorIs(t, err, ErrProofNotFound)

	_, err = f.verify("not-a-uuid", "free_1")
	assert.ErrorIs(t, err, ErrProofNotFound)
}

func TestRedeemBudget(t *testing.T) {
	f := newFixture()
	resp, err := f.verify(freeID, "free_1")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		url, err := f.svc.Redeem(context.Background(), resp.DownloadToken)
		require.NoError(t, err, "redemption %d", i+1)
		assert.Equal(t, "https://s3.example/originals/originals/bb.png?ttl=1h0m0s", url)
	}

	_, err = f.svc.Redeem(context.Background(), resp.DownloadToken)
	assert.ErrorIs(t, err, ErrDownloadLimit)
	assert.Equal(t, http.StatusTooManyRequests, ToAppError(err).HTTPStatus())
}

func TestRedeemConcurrentlyNeverExceedsBudget(t *testing.T) {
	f := newFixture()
	resp, err := f.verify(freeID, "free_1")
	require.NoError(t, err)

	var ok, limited int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Redeem(context.Background(), resp.DownloadToken)
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrDownloadLimit):
				atomic.AddInt32(&limited, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok)
	assert.Equal(t, int32(15), limited)
}

func TestRedeemAfterExpiry(t *testing.T) {
	f := newFixture()
	resp, err := f.verify(freeID, "free_1")
	require.NoError(t, err)

	_, err = f.svc.Redeem(context.Background(), resp.DownloadToken)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.Redeem(context.Background(), resp.DownloadToken)
	require.NoError(t, err, "still valid at the expiry instant")

	f.clock.Advance(time.Second)
	_, err = f.svc.Redeem(context.Background(), resp.DownloadToken)
	assert.ErrorIs(t, err, ErrDownloadExpired)
	assert.Equal(t, http.StatusGone, ToAppError(err).HTTPStatus())
}

func TestRedeemUnknownToken(t *testing.T) {
	f := newFixture()
	for _, token := range []string{"", "nope"} {
		_, err := f.svc.Redeem(context.Background(), token)
		assert.ErrorIs(t, err, ErrDownloadNotFound)
	}
}

func TestCheck(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	got, err := f.svc.Check(ctx, freeID, buyer.String())
	require.NoError(t, err)
	assert.False(t, got.Purchased)

	resp, err := f.verify(freeID, "free_1")
	require.NoError(t, err)

	got, err = f.svc.Check(ctx, freeID, buyer.StringRaw())
	require.NoError(t, err)
	assert.True(t, got.Purchased)
	assert.Equal(t, resp.DownloadToken, got.DownloadToken)

	f.clock.Advance(25 * time.Hour)
	got, err = f.svc.Check(ctx, freeID, buyer.String())
	require.NoError(t, err)
	assert.True(t, got.Purchased)
	assert.Empty(t, got.DownloadToken)

	_, err = f.svc.Check(ctx, freeID, "")
	assert.ErrorIs(t, err, ErrMissingFields)

	got, err = f.svc.Check(ctx, "not-a-uuid", buyer.String())
	require.NoError(t, err)
	assert.False(t, got.Purchased)
}

func TestToAppErrorHidesUnknownErrors(t *testing.T) {
	appErr := ToAppError(errors.New("pq: deadlock detected"))
	assert.True(t, appErr.IsInternal())
	assert.Equal(t, "Internal server error", appErr.Message)

	wrapped := ToAppError(errors.Join(errors.New("ctx"), ErrFeeTooHigh))
	assert.Equal(t, "Fee too high", wrapped.Message)
}

func TestVerifyRejectsBouncedPayment(t *testing.T) {
	// seller account is uninitialized, so the bounceable payment returns to the buyer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"transaction": {
				"hash": "bounced", "account": {"address": %q}, "success": true, "total_fees": 3000000,
				"in_msg": {"msg_type": "ext_in_msg"},
				"out_msgs": [{"msg_type": "int_msg", "value": 1000000000, "destination": {"address": %q}}]
			},
			"children": [{
				"transaction": {
					"hash": "c1", "account": {"address": %q}, "success": false, "aborted": true,
					"in_msg": {"msg_type": "int_msg", "value": 1000000000}
				}
			}]
		}`, buyer.StringRaw(), seller.StringRaw(), seller.StringRaw())
	}))
	defer srv.Close()

	f := newFixture()
	f.svc.txs = ton.NewTonAPI(srv.URL, "")

	_, err := f.verify(paidID, "bounced")
	assert.ErrorIs(t, err, ErrInsufficientTransfer)
	assert.Empty(t, f.repo.bySig)
}

func TestRedeemFailureKeepsDownloadBudget(t *testing.T) {
	f := newFixture()
	resp, err := f.verify(freeID, "free_1")
	require.NoError(t, err)

	signer, proofs := f.svc.signer, f.svc.proofs

	f.svc.signer = fakeSigner{err: errors.New("credentials expired")}
	_, err = f.svc.Redeem(context.Background(), resp.DownloadToken)
	require.Error(t, err)

	f.svc.signer = signer
	f.svc.proofs = fakeProofs{}
	_, err = f.svc.Redeem(context.Background(), resp.DownloadToken)
	assert.ErrorIs(t, err, proofrepo.ErrProofNotFound)

	stored, err := f.repo.FindByToken(context.Background(), resp.DownloadToken)
	require.NoError(t, err)
	assert.Zero(t, stored.DownloadCount)

	f.svc.proofs = proofs
	for i := 0; i < 10; i++ {
		_, err := f.svc.Redeem(context.Background(), resp.DownloadToken)
		require.NoError(t, err, "redemption %d", i+1)
	}
	_, err = f.svc.Redeem(context.Background(), resp.DownloadToken)
	assert.ErrorIs(t, err, ErrDownloadLimit)
}
