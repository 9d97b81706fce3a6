package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-notary-backend/internal/common/middleware"
	"media-notary-backend/internal/features/proof/models"
	"media-notary-backend/internal/features/proof/repository"
	"media-notary-backend/internal/features/proof/service"
)

type stubRepo struct {
	records map[string]*models.ProofRecord
	err     error
}

func (s *stubRepo) Upsert(ctx context.Context, rec *models.ProofRecord) (*models.ProofRecord, error) {
	return rec, nil
}

func (s *stubRepo) GetByID(ctx context.Context, id string) (*models.ProofRecord, error) {
	return nil, repository.ErrProofNotFound
}

func (s *stubRepo) GetByOriginalHash(ctx context.Context, hash string) (*models.ProofRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if rec, ok := s.records[hash]; ok {
		return rec, nil
	}
	return nil, repository.ErrProofNotFound
}

func newRouter(repo repository.ProofRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.ErrorHandler(zerolog.Nop()))
	NewProofHandler(service.NewProofService(repo), zerolog.Nop()).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGetProof(t *testing.T) {
	hash := strings.Repeat("ab12", 16)
	hidden := strings.Repeat("cd34", 16)
	repo := &stubRepo{records: map[string]*models.ProofRecord{
		hash:   {ID: "p-1", OriginalHash: hash, AssetIdentifier: "0:asset", FileExtension: "jpg", IsPublic: true},
		hidden: {ID: "p-2", OriginalHash: hidden, IsPublic: false},
	}}
	r := newRouter(repo)

	rec := get(r, "/api/v1/proofs/"+hash)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.ProofView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "p-1", view.ID)
	assert.Equal(t, "0:asset", view.AssetIdentifier)
	assert.NotContains(t, rec.Body.String(), "fileExtension")

	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/proofs/"+hidden).Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/v1/proofs/"+strings.Repeat("ef56", 16)).Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/v1/proofs/xyz").Code)
}

func TestGetProofHidesDatabaseError(t *testing.T) {
	r := newRouter(&stubRepo{err: errors.New("pq: connection refused")})

	rec := get(r, "/api/v1/proofs/"+strings.Repeat("ab12", 16))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
