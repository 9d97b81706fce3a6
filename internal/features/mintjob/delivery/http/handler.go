package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"media-notary-backend/internal/common/errors"
	"media-notary-backend/internal/common/middleware"
	"media-notary-backend/internal/features/mintjob/models"
	"media-notary-backend/internal/features/mintjob/service"
)

type MintJobHandler struct {
	service service.MintJobService
	logger  zerolog.Logger
}

func NewMintJobHandler(service service.MintJobService, logger zerolog.Logger) *MintJobHandler {
	return &MintJobHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes mounts the status endpoint publicly and the enqueue endpoint behind trigger.
func (h *MintJobHandler) RegisterRoutes(router *gin.RouterGroup, trigger gin.HandlerFunc) {
	router.POST("/mint-jobs", trigger, h.enqueue)
	router.GET("/job-status/:jobId", h.getStatus)
}

// @Summary Enqueue a mint job
// @Description Called by the upload pipeline once the original file and its signature are verified
// @Tags mint-jobs
// @Accept json
// @Produce json
// @Security TriggerToken
// @Param input body models.Payload true "Mint job payload"
// @Success 202 {object} models.EnqueueResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 401 {object} middleware.ErrorResponse
// @Router /mint-jobs [post]
func (h *MintJobHandler) enqueue(c *gin.Context) {
	var payload models.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		middleware.RespondError(c, h.logger, errors.Wrap(err, errors.ErrCodeValidation, "invalid request body"))
		return
	}

	jobID, err := h.service.Enqueue(c.Request.Context(), &payload)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusAccepted, models.EnqueueResponse{JobID: jobID})
}

// @Summary Get mint job status
// @Tags mint-jobs
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} models.JobStatus
// @Failure 404 {object} middleware.ErrorResponse
// @Router /job-status/{jobId} [get]
func (h *MintJobHandler) getStatus(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
