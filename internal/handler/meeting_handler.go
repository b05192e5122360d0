package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/teamcal/teamcal-api/internal/models"
	"github.com/teamcal/teamcal-api/internal/service"
	appErrors "github.com/teamcal/teamcal-api/pkg/errors"
	"github.com/teamcal/teamcal-api/pkg/response"
)

// MeetingHandler exposes meeting listing, CRUD, and export endpoints.
type MeetingHandler struct {
	service *service.MeetingService
}

// NewMeetingHandler creates a new handler.
func NewMeetingHandler(svc *service.MeetingService) *MeetingHandler {
	return &MeetingHandler{service: svc}
}

// List godoc
// @Summary List meetings
// @Description List meetings, optionally filtered to upcoming or previous
// @Tags Meetings
// @Produce json
// @Param filter query string false "upcoming or previous"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	filter := models.MeetingTimeFilter(c.Query("filter"))
	meetings, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}

// Get godoc
// @Summary Get meeting
// @Description Get a meeting by ID
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	meeting, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

// Create godoc
// @Summary Create meeting
// @Description Create an ad-hoc meeting on a configured slot
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body models.CreateMeetingRequest true "Meeting payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Create(c *gin.Context) {
	var req models.CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}

	meeting, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, meeting)
}

// Update godoc
// @Summary Update meeting
// @Description Update a meeting's time, notes, or link
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body models.UpdateMeetingRequest true "Meeting payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /meetings/{id} [put]
func (h *MeetingHandler) Update(c *gin.Context) {
	var req models.UpdateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid meeting payload"))
		return
	}

	meeting, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, meeting, nil)
}

// Delete godoc
// @Summary Delete meeting
// @Description Delete a meeting by ID
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /meetings/{id} [delete]
func (h *MeetingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export meetings
// @Description Export the meeting list as CSV or PDF
// @Tags Meetings
// @Produce octet-stream
// @Param filter query string false "upcoming or previous"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /meetings/export [get]
func (h *MeetingHandler) Export(c *gin.Context) {
	filter := models.MeetingTimeFilter(c.Query("filter"))
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))

	payload, contentType, err := h.service.Export(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("meetings-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
