package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"media-notary-backend/internal/common/errors"
	"media-notary-backend/internal/common/middleware"
	"media-notary-backend/internal/features/purchase/models"
	"media-notary-backend/internal/features/purchase/service"
)

type PurchaseHandler struct {
	service service.PurchaseService
	logger  zerolog.Logger
}

func NewPurchaseHandler(service service.PurchaseService, logger zerolog.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		service: service,
		logger:  logger,
	}
}

func (h *PurchaseHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/purchase", h.purchase)
	router.GET("/purchase-check", h.check)
	router.GET("/download/:token", h.download)
}

func (h *PurchaseHandler) fail(c *gin.Context, err error) {
	middleware.RespondError(c, h.logger, service.ToAppError(err))
}

// @Summary Record a purchase
// @Description Verifies the referenced ledger transaction and issues a download token. Free content uses a free_ signature.
// @Tags purchases
// @Accept json
// @Produce json
// @Param input body models.PurchaseRequest true "Purchase claim"
// @Success 200 {object} models.PurchaseResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Failure 500 {object} middleware.ErrorResponse
// @Router /purchase [post]
func (h *PurchaseHandler) purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, h.logger, errors.Wrap(err, errors.ErrCodeValidation, "Invalid request body"))
		return
	}

	resp, err := h.service.Verify(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Check purchase status
// @Tags purchases
// @Produce json
// @Param proofRecordId query string true "Proof record ID"
// @Param walletAddress query string true "Buyer wallet"
// @Success 200 {object} models.PurchaseCheckResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Router /purchase-check [get]
func (h *PurchaseHandler) check(c *gin.Context) {
	resp, err := h.service.Check(c.Request.Context(), c.Query("proofRecordId"), c.Query("walletAddress"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Download the original file
// @Description Consumes one of the token's downloads and redirects to a short-lived signed URL
// @Tags purchases
// @Param token path string true "Download token"
// @Success 302
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 410 {object} middleware.ErrorResponse
// @Failure 429 {object} middleware.ErrorResponse
// @Router /download/{token} [get]
func (h *PurchaseHandler) download(c *gin.Context) {
	url, err := h.service.Redeem(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, url)
}
