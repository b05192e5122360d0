package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/service"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
	"github.com/teamcal/teamcal-api/pkg/response"
)

// ScheduleHandler exposes schedule configuration and backfill endpoints.
type ScheduleHandler struct {
	schedule *service.ScheduleService
	backfill *service.BackfillService
}

// NewScheduleHandler creates a new handler.
func NewScheduleHandler(schedule *service.ScheduleService, backfill *service.BackfillService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, backfill: backfill}
}

// Get godoc
// @Summary Get schedule configuration
// @Description Returns the weekly slots and default link, seeding defaults on first access
// @Tags Schedule
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	cfg, err := h.schedule.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Update godoc
// @Summary Update schedule configuration
// @Description Partially update the weekly slots or default link
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body models.SchedulePatch true "Schedule patch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedule [patch]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var patch models.SchedulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}

	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}

	cfg, err := h.schedule.Update(c.Request.Context(), patch, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, cfg, nil)
}

// Backfill godoc
// @Summary Run schedule backfill
// @Description Generate occurrences for the configured range and reconcile them into storage
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.BackfillRequest true "Backfill request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedule/backfill [post]
func (h *ScheduleHandler) Backfill(c *gin.Context) {
	var req service.BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid backfill payload"))
		return
	}

	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}

	result, err := h.backfill.Run(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}
