package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/psy-schedule-api/internal/models"
)

func appt(id int64, date, start string) models.Appointment {
	return models.Appointment{
		ID:        id,
		Date:      models.MustParseDate(date),
		StartTime: start,
		EndTime:   "23:59",
		Status:    models.StatusConfirmed,
	}
}

func TestGenerateTimeSlotsDefault(t *testing.T) {
	slots := GenerateTimeSlots(DefaultStartHour, DefaultEndHour)
	require.Len(t, slots, 12)
	assert.Equal(t, []string{
		"08:00", "09:00", "10:00", "11:00", "12:00", "13:00",
		"14:00", "15:00", "16:00", "17:00", "18:00", "19:00",
	}, slots)
}

func TestGenerateTimeSlotsInvalidBounds(t *testing.T) {
	assert.Empty(t, GenerateTimeSlots(10, 9))
	assert.Empty(t, GenerateTimeSlots(-1, 5))
	assert.Empty(t, GenerateTimeSlots(8, 24))
	assert.Equal(t, []string{"12:00"}, GenerateTimeSlots(12, 12))
}

func TestBucketIgnoresMinutes(t *testing.T) {
	day := models.MustParseDate("2024-05-15")
	a := appt(1, "2024-05-15", "09:00")
	b := appt(2, "2024-05-15", "09:45")
	other := appt(3, "2024-05-16", "09:10")
	list := []models.Appointment{a, b, other}

	nine := Bucket(list, day, "09:00")
	require.Len(t, nine, 2)
	assert.Equal(t, int64(1), nine[0].ID)
	assert.Equal(t, int64(2), nine[1].ID)
	assert.Empty(t, Bucket(list, day, "10:00"))
}

func TestBucketWithSeconds(t *testing.T) {
	day := models.MustParseDate("2024-05-15")
	list := []models.Appointment{appt(1, "2024-05-15", "14:30:00")}
	assert.Len(t, Bucket(list, day, "14:00"), 1)
	assert.Empty(t, Bucket(list, day, "garbage"))
}

func TestBuildGridWeek(t *testing.T) {
	rng := models.CalendarRange{Start: models.MustParseDate("2024-05-13"), End: models.MustParseDate("2024-05-19")}
	list := []models.Appointment{
		appt(1, "2024-05-13", "08:15"),
		appt(2, "2024-05-13", "08:30"),
		appt(3, "2024-05-19", "19:00"),
		appt(4, "2024-05-15", "07:00"),
		appt(5, "2024-05-15", "20:30"),
		appt(6, "2024-05-20", "10:00"),
	}
	grid := BuildGrid(list, rng, GenerateTimeSlots(DefaultStartHour, DefaultEndHour))

	require.Len(t, grid.Days, 7)
	for _, day := range grid.Days {
		assert.Len(t, day.Cells, 12)
	}
	cell, ok := grid.Cell(models.MustParseDate("2024-05-13"), "08:00")
	require.True(t, ok)
	assert.Len(t, cell.Appointments, 2)

	cell, ok = grid.Cell(models.MustParseDate("2024-05-19"), "19:00")
	require.True(t, ok)
	assert.Len(t, cell.Appointments, 1)

	assert.Equal(t, 3, grid.Count())
	require.Len(t, grid.Unplaced, 2)
	assert.Equal(t, int64(4), grid.Unplaced[0].ID)
	assert.Equal(t, int64(5), grid.Unplaced[1].ID)
}

func TestSortAppointments(t *testing.T) {
	list := []models.Appointment{
		appt(3, "2024-05-14", "08:00"),
		appt(2, "2024-05-13", "10:00"),
		appt(1, "2024-05-13", "9:30"),
	}
	SortAppointments(list)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(2), list[1].ID)
	assert.Equal(t, int64(3), list[2].ID)
}
