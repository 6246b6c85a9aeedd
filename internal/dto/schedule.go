package dto

import (
	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

// Navigation actions accepted by NavigateRequest.
const (
	NavigatePrevious = "previous"
	NavigateNext     = "next"
	NavigateToday    = "today"
	NavigateGoTo     = "goto"
)

// NavigateRequest moves the calendar anchor.
type NavigateRequest struct {
	Action string      `json:"action" validate:"required,oneof=previous next today goto"`
	Date   models.Date `json:"date"`
}

// ViewModeRequest switches between day and week views.
type ViewModeRequest struct {
	Mode string `json:"mode" validate:"required,view_mode"`
}

// ViewportRequest reports the client's viewport width in pixels. Zero means unknown.
type ViewportRequest struct {
	Width int `json:"width" validate:"gte=0,lte=10000"`
}

// StatusChangeRequest stages a status change for confirmation.
type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,appointment_status"`
}

// NotesRequest replaces the psychologist notes of an appointment.
type NotesRequest struct {
	Notes string `json:"notes" validate:"max=5000"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// CellView is one slot of one day.
type CellView struct {
	Slot         string               `json:"slot"`
	Appointments []models.Appointment `json:"appointments"`
}

// DayView is one column of the grid.
type DayView struct {
	Date  models.Date `json:"date"`
	Cells []CellView  `json:"cells"`
}

// ScheduleView is the full state rendered by the dashboard.
type ScheduleView struct {
	Mode          models.ViewMode          `json:"mode"`
	Anchor        models.Date              `json:"anchor"`
	Range         models.CalendarRange     `json:"range"`
	LoadedRange   *models.CalendarRange    `json:"loaded_range,omitempty"`
	WeekAvailable bool                     `json:"week_available"`
	Slots         []string                 `json:"slots"`
	Days          []DayView                `json:"days"`
	Unplaced      []models.Appointment     `json:"unplaced,omitempty"`
	Total         int                      `json:"total"`
	Staged        *scheduling.StatusChange `json:"staged,omitempty"`
	LoadError     *appErrors.Error         `json:"load_error,omitempty"`
}

// TransitionsResponse lists the statuses an appointment may move to.
type TransitionsResponse struct {
	AppointmentID int64                    `json:"appointment_id"`
	Current       models.AppointmentStatus `json:"current"`
	CurrentLabel  string                   `json:"current_label"`
	Terminal      bool                     `json:"terminal"`
	Targets       []TransitionOption       `json:"targets"`
}

// TransitionOption is one legal target status.
type TransitionOption struct {
	Status models.AppointmentStatus `json:"status"`
	Label  string                   `json:"label"`
}

// StagedChangeResponse is returned after staging; the change waits for confirmation.
type StagedChangeResponse struct {
	Change      scheduling.StatusChange `json:"change"`
	TargetLabel string                  `json:"target_label"`
	Prompt      string                  `json:"prompt"`
}

// CancelResponse reports whether anything was discarded.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ExportFile is a rendered grid download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
