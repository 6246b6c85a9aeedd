package scheduling

import (
	"fmt"
	"sort"

	"github.com/noah-isme/psy-schedule-api/internal/models"
)

// Default bounds of the hourly time axis.
const (
	DefaultStartHour = 8
	DefaultEndHour   = 19
)

// GenerateTimeSlots returns hourly labels from startHour to endHour inclusive.
// Bounds outside 0..23 or inverted bounds yield no slots.
func GenerateTimeSlots(startHour, endHour int) []string {
	if startHour < 0 || endHour > 23 || startHour > endHour {
		return []string{}
	}
	slots := make([]string, 0, endHour-startHour+1)
	for h := startHour; h <= endHour; h++ {
		slots = append(slots, SlotLabel(h))
	}
	return slots
}

// SlotLabel formats an hour as an axis label.
func SlotLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// Bucket returns the appointments on date whose start hour matches slotLabel's hour.
// Minutes are ignored, so 09:37 lands in "09:00". Order of the input is kept.
func Bucket(appointments []models.Appointment, date models.Date, slotLabel string) []models.Appointment {
	slotHour, err := models.ParseHour(slotLabel)
	if err != nil {
		return []models.Appointment{}
	}
	out := make([]models.Appointment, 0)
	for _, appt := range appointments {
		if appt.Date != date {
			continue
		}
		hour, err := appt.StartHour()
		if err != nil || hour != slotHour {
			continue
		}
		out = append(out, appt)
	}
	return out
}

// Cell is one (date, slot) bucket of a grid.
type Cell struct {
	Date         models.Date          `json:"date"`
	Slot         string               `json:"slot"`
	Appointments []models.Appointment `json:"appointments"`
}

// Day is one column of a grid.
type Day struct {
	Date  models.Date `json:"date"`
	Cells []Cell      `json:"cells"`
}

// Grid maps appointments of a range onto days × slots.
type Grid struct {
	Range    models.CalendarRange `json:"range"`
	Slots    []string             `json:"slots"`
	Days     []Day                `json:"days"`
	Unplaced []models.Appointment `json:"unplaced,omitempty"`
}

// BuildGrid buckets appointments into every (day, slot) cell of rng.
// Appointments in range whose start hour has no slot end up in Unplaced.
func BuildGrid(appointments []models.Appointment, rng models.CalendarRange, slots []string) Grid {
	grid := Grid{Range: rng, Slots: append([]string(nil), slots...)}
	placed := make(map[int64]struct{}, len(appointments))
	for _, date := range rng.Days() {
		day := Day{Date: date, Cells: make([]Cell, 0, len(slots))}
		for _, slot := range slots {
			bucket := Bucket(appointments, date, slot)
			for _, appt := range bucket {
				placed[appt.ID] = struct{}{}
			}
			day.Cells = append(day.Cells, Cell{Date: date, Slot: slot, Appointments: bucket})
		}
		grid.Days = append(grid.Days, day)
	}
	for _, appt := range appointments {
		if _, ok := placed[appt.ID]; ok || !rng.Contains(appt.Date) {
			continue
		}
		grid.Unplaced = append(grid.Unplaced, appt)
	}
	return grid
}

// Cell returns the bucket for date and slot.
func (g Grid) Cell(date models.Date, slot string) (Cell, bool) {
	for _, day := range g.Days {
		if day.Date != date {
			continue
		}
		for _, cell := range day.Cells {
			if cell.Slot == slot {
				return cell, true
			}
		}
	}
	return Cell{}, false
}

// Count returns the number of placed appointments.
func (g Grid) Count() int {
	total := 0
	for _, day := range g.Days {
		for _, cell := range day.Cells {
			total += len(cell.Appointments)
		}
	}
	return total
}

// SortAppointments orders by (date, start time) ascending, ID breaking ties.
func SortAppointments(appointments []models.Appointment) {
	sort.SliceStable(appointments, func(i, j int) bool {
		a, b := appointments[i], appointments[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		as, bs := models.NormalizeClock(a.StartTime), models.NormalizeClock(b.StartTime)
		if as != bs {
			return as < bs
		}
		return a.ID < b.ID
	})
}
