package models

import "fmt"

// ViewMode selects the calendar shape.
type ViewMode string

const (
	ViewDay  ViewMode = "day"
	ViewWeek ViewMode = "week"
)

// Valid reports whether the mode is known.
func (m ViewMode) Valid() bool {
	return m == ViewDay || m == ViewWeek
}

// CalendarRange is an inclusive span of calendar days.
type CalendarRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Days returns every date in the range in order.
func (r CalendarRange) Days() []Date {
	if r.End.Before(r.Start) {
		return nil
	}
	days := make([]Date, 0, 7)
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether d falls inside the range.
func (r CalendarRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// String renders the range as start..end.
func (r CalendarRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}
