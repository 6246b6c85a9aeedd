package models

import (
	"fmt"
	"strconv"
	"strings"
)

// AppointmentStatus enumerates lifecycle states. The values are wire tokens and must not change.
type AppointmentStatus string

const (
	StatusPendingPayment  AppointmentStatus = "PENDING_PAYMENT"
	StatusPaymentUploaded AppointmentStatus = "PAYMENT_UPLOADED"
	StatusPaymentVerified AppointmentStatus = "PAYMENT_VERIFIED"
	StatusConfirmed       AppointmentStatus = "CONFIRMED"
	StatusCompleted       AppointmentStatus = "COMPLETED"
	StatusCancelled       AppointmentStatus = "CANCELLED"
	StatusNoShow          AppointmentStatus = "NO_SHOW"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []AppointmentStatus{
	StatusPendingPayment,
	StatusPaymentUploaded,
	StatusPaymentVerified,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
	StatusNoShow,
}

// Valid reports whether s is one of the enumerated tokens.
func (s AppointmentStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Appointment is one booked session as returned by the scheduling backend.
type Appointment struct {
	ID                int64             `json:"id"`
	ClientName        string            `json:"client_name"`
	Date              Date              `json:"date"`
	StartTime         string            `json:"start_time"`
	EndTime           string            `json:"end_time"`
	Status            AppointmentStatus `json:"status"`
	StatusDisplay     string            `json:"status_display"`
	PsychologistNotes OptionalString    `json:"psychologist_notes"`
	ClientNotes       OptionalString    `json:"client_notes"`
}

// StartHour returns the hour portion of StartTime.
func (a Appointment) StartHour() (int, error) {
	return ParseHour(a.StartTime)
}

// ParseHour extracts the hour from an HH:MM[:SS] string.
func ParseHour(clock string) (int, error) {
	clock = strings.TrimSpace(clock)
	idx := strings.IndexByte(clock, ':')
	if idx <= 0 {
		return 0, fmt.Errorf("invalid time of day %q", clock)
	}
	hour, err := strconv.Atoi(clock[:idx])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid time of day %q", clock)
	}
	return hour, nil
}

// NormalizeClock pads HH:MM[:SS] to HH:MM:SS so values compare lexically.
func NormalizeClock(clock string) string {
	parts := strings.Split(strings.TrimSpace(clock), ":")
	for len(parts) < 3 {
		parts = append(parts, "00")
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	return strings.Join(parts[:3], ":")
}
