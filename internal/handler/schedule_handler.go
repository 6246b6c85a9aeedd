package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/psy-schedule-api/internal/dto"
	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
	"github.com/noah-isme/psy-schedule-api/pkg/response"
)

type scheduleSessions interface {
	View(ctx context.Context, actor models.Actor) (*dto.ScheduleView, error)
	Navigate(ctx context.Context, actor models.Actor, req dto.NavigateRequest) (*dto.ScheduleView, error)
	SetViewMode(ctx context.Context, actor models.Actor, req dto.ViewModeRequest) (*dto.ScheduleView, error)
	SetViewport(ctx context.Context, actor models.Actor, req dto.ViewportRequest) (*dto.ScheduleView, error)
	Reload(ctx context.Context, actor models.Actor) (*dto.ScheduleView, error)
	Transitions(ctx context.Context, actor models.Actor, appointmentID int64) (*dto.TransitionsResponse, error)
	StageStatusChange(ctx context.Context, actor models.Actor, appointmentID int64, req dto.StatusChangeRequest) (*dto.StagedChangeResponse, error)
	Confirm(ctx context.Context, actor models.Actor) (models.Appointment, error)
	Cancel(ctx context.Context, actor models.Actor) bool
	UpdateNotes(ctx context.Context, actor models.Actor, appointmentID int64, req dto.NotesRequest) (models.Appointment, error)
}

type scheduleExporter interface {
	Export(ctx context.Context, actor models.Actor, format string) (*dto.ExportFile, error)
}

type changeHistory interface {
	Enabled() bool
	History(ctx context.Context, appointmentID int64, limit int) ([]models.AuditLog, error)
}

// ScheduleHandler serves the psychologist calendar and status workflow.
type ScheduleHandler struct {
	sessions scheduleSessions
	exporter scheduleExporter
	history  changeHistory
}

// NewScheduleHandler constructs handler. history may be nil when auditing is off.
func NewScheduleHandler(sessions scheduleSessions, exporter scheduleExporter, history changeHistory) *ScheduleHandler {
	return &ScheduleHandler{sessions: sessions, exporter: exporter, history: history}
}

// Get godoc
// @Summary Current schedule view
// @Description Loads the visible range on first use and returns the grid with any staged change.
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	view, err := h.sessions.View(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Navigate godoc
// @Summary Move the calendar anchor
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.NavigateRequest true "Navigation action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schedule/navigate [post]
func (h *ScheduleHandler) Navigate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid navigation payload"))
		return
	}
	view, err := h.sessions.Navigate(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// SetViewMode godoc
// @Summary Switch between day and week view
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ViewModeRequest true "View mode"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /schedule/view [put]
func (h *ScheduleHandler) SetViewMode(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.ViewModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid view payload"))
		return
	}
	view, err := h.sessions.SetViewMode(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// SetViewport godoc
// @Summary Report the client viewport width
// @Description Narrow viewports force the day view.
// @Tags Schedule
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ViewportRequest true "Viewport"
// @Success 200 {object} response.Envelope
// @Router /schedule/viewport [put]
func (h *ScheduleHandler) SetViewport(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req dto.ViewportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid viewport payload"))
		return
	}
	view, err := h.sessions.SetViewport(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Reload godoc
// @Summary Refetch the visible range
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /schedule/reload [post]
func (h *ScheduleHandler) Reload(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	view, err := h.sessions.Reload(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// Export godoc
// @Summary Download the visible grid
// @Tags Schedule
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), actor, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// Transitions godoc
// @Summary Statuses the caller may move an appointment to
// @Tags Appointments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{id}/transitions [get]
func (h *ScheduleHandler) Transitions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := appointmentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp, err := h.sessions.Transitions(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// StageStatus godoc
// @Summary Stage a status change
// @Description The change is held until confirmed or cancelled. Staging replaces any earlier staged change.
// @Tags Appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Param payload body dto.StatusChangeRequest true "Target status"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /appointments/{id}/status [post]
func (h *ScheduleHandler) StageStatus(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := appointmentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.StatusChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	staged, err := h.sessions.StageStatusChange(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, staged)
}

// Confirm godoc
// @Summary Commit the staged status change
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /schedule/confirmation/confirm [post]
func (h *ScheduleHandler) Confirm(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	appt, err := h.sessions.Confirm(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, appt)
}

// Cancel godoc
// @Summary Discard the staged status change
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /schedule/confirmation/cancel [post]
func (h *ScheduleHandler) Cancel(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	response.OK(c, dto.CancelResponse{Cancelled: h.sessions.Cancel(c.Request.Context(), actor)})
}

// UpdateNotes godoc
// @Summary Replace psychologist notes
// @Tags Appointments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Param payload body dto.NotesRequest true "Notes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /appointments/{id}/notes [patch]
func (h *ScheduleHandler) UpdateNotes(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, err := appointmentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.NotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notes payload"))
		return
	}
	appt, err := h.sessions.UpdateNotes(c.Request.Context(), actor, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, appt)
}

// History godoc
// @Summary Audit trail of committed changes to an appointment
// @Tags Appointments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Appointment ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{id}/history [get]
func (h *ScheduleHandler) History(c *gin.Context) {
	if h.history == nil || !h.history.Enabled() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "audit trail disabled"))
		return
	}
	id, err := appointmentIDParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.history.History(c.Request.Context(), id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, logs, map[string]interface{}{"count": len(logs)})
}

func (h *ScheduleHandler) actor(c *gin.Context) (models.Actor, bool) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return actor, ok
}
