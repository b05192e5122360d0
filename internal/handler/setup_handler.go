package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/service"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
	"github.com/teamcal/teamcal-api/pkg/response"
)

// SetupHandler exposes the one-shot installation bootstrap.
type SetupHandler struct {
	service *service.SetupService
}

// NewSetupHandler creates a new handler.
func NewSetupHandler(svc *service.SetupService) *SetupHandler {
	return &SetupHandler{service: svc}
}

// Status godoc
// @Summary Setup status
// @Description Reports whether the install still needs its first administrator
// @Tags Setup
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /setup [get]
func (h *SetupHandler) Status(c *gin.Context) {
	required, err := h.service.Required(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"setup_required": required}, nil)
}

// Initialize godoc
// @Summary Run initial setup
// @Description Create the first administrator account; closed once any user exists
// @Tags Setup
// @Accept json
// @Produce json
// @Param payload body models.SetupRequest true "Setup payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /setup [post]
func (h *SetupHandler) Initialize(c *gin.Context) {
	var req models.SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid setup payload"))
		return
	}

	admin, err := h.service.Initialize(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, admin)
}
