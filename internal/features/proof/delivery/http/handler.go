package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"media-notary-backend/internal/common/middleware"
	"media-notary-backend/internal/features/proof/service"
)

type ProofHandler struct {
	service service.ProofService
	logger  zerolog.Logger
}

func NewProofHandler(service service.ProofService, logger zerolog.Logger) *ProofHandler {
	return &ProofHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ProofHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/proofs/:hash", h.getByHash)
}

// @Summary Resolve a proof of authenticity
// @Description Looks up the public proof record by the sha256 of the original file
// @Tags proofs
// @Produce json
// @Param hash path string true "Original file sha256, lowercase hex"
// @Success 200 {object} models.ProofView
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /proofs/{hash} [get]
func (h *ProofHandler) getByHash(c *gin.Context) {
	view, err := h.service.GetByOriginalHash(c.Request.Context(), c.Param("hash"))
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
