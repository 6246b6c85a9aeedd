// Package scheduling holds the appointment scheduling core: the status
// transition policy, the confirmation gate, the calendar grid, date-range
// navigation and the per-range appointment store.
package scheduling

import (
	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

// transitions lists the actor-driven moves. Earlier states are advanced by the payment pipeline.
var transitions = map[models.AppointmentStatus][]models.AppointmentStatus{
	models.StatusPaymentVerified: {
		models.StatusConfirmed,
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusNoShow,
	},
	models.StatusConfirmed: {
		models.StatusCompleted,
		models.StatusCancelled,
		models.StatusNoShow,
	},
}

var statusLabels = map[models.AppointmentStatus]string{
	models.StatusPendingPayment:  "Pending payment",
	models.StatusPaymentUploaded: "Payment uploaded",
	models.StatusPaymentVerified: "Payment verified",
	models.StatusConfirmed:       "Confirmed",
	models.StatusCompleted:       "Completed",
	models.StatusCancelled:       "Cancelled",
	models.StatusNoShow:          "No show",
}

// CanTransition reports whether current may move to target.
func CanTransition(current, target models.AppointmentStatus) bool {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// CanTransitionAs applies the table only for roles that manage sessions.
func CanTransitionAs(role models.UserRole, current, target models.AppointmentStatus) bool {
	if !canManage(role) {
		return false
	}
	return CanTransition(current, target)
}

// AllowedTargets returns the legal targets for current in table order.
func AllowedTargets(current models.AppointmentStatus) []models.AppointmentStatus {
	allowed := transitions[current]
	out := make([]models.AppointmentStatus, len(allowed))
	copy(out, allowed)
	return out
}

// AllowedTargetsAs is AllowedTargets filtered by the actor's role.
func AllowedTargetsAs(role models.UserRole, current models.AppointmentStatus) []models.AppointmentStatus {
	if !canManage(role) {
		return []models.AppointmentStatus{}
	}
	return AllowedTargets(current)
}

// IsTerminal reports whether no actor-driven transition leaves status.
func IsTerminal(status models.AppointmentStatus) bool {
	switch status {
	case models.StatusCompleted, models.StatusCancelled, models.StatusNoShow:
		return true
	default:
		return false
	}
}

// Label returns a human readable label, used when the backend sends none.
func Label(status models.AppointmentStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// ParseStatus validates a wire token. Tokens are case sensitive.
func ParseStatus(raw string) (models.AppointmentStatus, error) {
	status := models.AppointmentStatus(raw)
	if !status.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "unknown appointment status: "+raw)
	}
	return status, nil
}

func canManage(role models.UserRole) bool {
	return role == models.RolePsychologist || role == models.RoleAdmin
}
