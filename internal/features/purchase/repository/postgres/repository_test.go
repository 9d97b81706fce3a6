package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-notary-backend/internal/features/purchase/models"
	"media-notary-backend/internal/features/purchase/repository"
)

var columns = []string{"id", "proof_record_id", "buyer_wallet", "seller_wallet", "tx_signature", "amount_lamports",
	"download_token", "download_expires_at", "download_count", "created_at"}

const (
	insertQuery    = `(?s)INSERT\s+INTO\s+purchases\s*\(.*RETURNING\s+created_at`
	redeemQuery    = `(?s)UPDATE\s+purchases\s+SET\s+download_count\s*=\s*download_count\s*\+\s*1\s+WHERE\s+download_token\s*=\s*\$1\s+AND\s+download_count\s*<\s*\$2\s+AND\s+download_expires_at\s*>=\s*\$3\s+RETURNING`
	findTokenQuery = `(?s)SELECT\s+id,.*FROM\s+purchases\s+WHERE\s+download_token\s*=\s*\$1$`
	classifyQuery  = `(?s)SELECT\s+download_expires_at,\s*download_count\s+FROM\s+purchases\s+WHERE\s+download_token\s*=\s*\$1`
)

func newRepoWithMock(t *testing.T) (repository.PurchaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func purchase(expires time.Time) *models.Purchase {
	return &models.Purchase{
		ID:                "pu-1",
		ProofRecordID:     "p-1",
		BuyerWallet:       "0:buyer",
		SellerWallet:      "0:seller",
		TxSignature:       "abc",
		AmountLamports:    1500,
		DownloadToken:     "tok",
		DownloadExpiresAt: expires,
	}
}

func row(p *models.Purchase, count int) *sqlmock.Rows {
	return sqlmock.NewRows(columns).AddRow(p.ID, p.ProofRecordID, p.BuyerWallet, p.SellerWallet, p.TxSignature,
		p.AmountLamports, p.DownloadToken, p.DownloadExpiresAt, count, p.CreatedAt)
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Now().UTC()
	p := purchase(created.Add(24 * time.Hour))

	mock.ExpectQuery(insertQuery).
		WithArgs("pu-1", "p-1", "0:buyer", "0:seller", "abc", int64(1500), "tok", p.DownloadExpiresAt, 0).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, created, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicateSignature(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "purchases_tx_signature_key"})

	err := repo.Create(context.Background(), purchase(time.Now()))
	assert.ErrorIs(t, err, repository.ErrDuplicateTransaction)
}

func TestCreateOtherUniqueViolationIsNotDuplicate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQuery).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "purchases_download_token_key"})

	err := repo.Create(context.Background(), purchase(time.Now()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrDuplicateTransaction)
}

func TestFindLatestByBuyer(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	p := purchase(time.Now().Add(time.Hour).UTC())

	q := `(?s)FROM\s+purchases\s+WHERE\s+proof_record_id\s*=\s*\$1\s+AND\s+buyer_wallet\s*=\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+1`
	mock.ExpectQuery(q).WithArgs("p-1", "0:buyer").WillReturnRows(row(p, 3))
	mock.ExpectQuery(q).WithArgs("p-1", "0:other").WillReturnError(sql.ErrNoRows)

	got, err := repo.FindLatestByBuyer(context.Background(), "p-1", "0:buyer")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.DownloadToken)
	assert.Equal(t, 3, got.DownloadCount)

	_, err = repo.FindLatestByBuyer(context.Background(), "p-1", "0:other")
	assert.ErrorIs(t, err, repository.ErrPurchaseNotFound)
}

func TestFindByToken(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	p := purchase(time.Now().UTC().Add(time.Hour))

	mock.ExpectQuery(findTokenQuery).WithArgs("tok").WillReturnRows(row(p, 4))
	mock.ExpectQuery(findTokenQuery).WithArgs("gone").WillReturnError(sql.ErrNoRows)

	got, err := repo.FindByToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.ProofRecordID)
	assert.Equal(t, 4, got.DownloadCount)

	_, err = repo.FindByToken(context.Background(), "gone")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedeemToken(t *testing.T) {
	now := time.Now().UTC()
	p := purchase(now.Add(time.Hour))

	t.Run("consumes one download", func(t *testing.T) {
		repo, mock := newRepoWithMock(t)
		mock.ExpectQuery(redeemQuery).WithArgs("tok", 10, now).WillReturnRows(row(p, 1))

		got, err := repo.RedeemToken(context.Background(), "tok", now, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, got.DownloadCount)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	cases := []struct {
		name    string
		rows    *sqlmock.Rows
		rowsErr error
		want    error
	}{
		{"unknown token", nil, sql.ErrNoRows, repository.ErrTokenNotFound},
		{"exhausted", sqlmock.NewRows([]string{"download_expires_at", "download_count"}).AddRow(now.Add(time.Hour), 10), nil, repository.ErrDownloadLimit},
		{"expired", sqlmock.NewRows([]string{"download_expires_at", "download_count"}).AddRow(now.Add(-time.Second), 2), nil, repository.ErrTokenExpired},
		{"expired and exhausted", sqlmock.NewRows([]string{"download_expires_at", "download_count"}).AddRow(now.Add(-time.Second), 10), nil, repository.ErrTokenExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectQuery(redeemQuery).WithArgs("tok", 10, now).WillReturnError(sql.ErrNoRows)
			classify := mock.ExpectQuery(classifyQuery).WithArgs("tok")
			if tc.rows != nil {
				classify.WillReturnRows(tc.rows)
			} else {
				classify.WillReturnError(tc.rowsErr)
			}

			_, err := repo.RedeemToken(context.Background(), "tok", now, 10)
			assert.ErrorIs(t, err, tc.want)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
