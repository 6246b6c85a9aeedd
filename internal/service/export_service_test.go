package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

func dayGrid() scheduling.Grid {
	date := models.MustParseDate("2024-05-15")
	appts := []models.Appointment{
		{ID: 1, ClientName: "Ana", Date: date, StartTime: "09:00:00", Status: models.StatusConfirmed, StatusDisplay: "Confirmed"},
		{ID: 2, ClientName: "Budi", Date: date, StartTime: "09:45:00", Status: models.StatusNoShow},
		{ID: 3, Date: date, StartTime: "22:00:00", Status: models.StatusCompleted},
	}
	rng := models.CalendarRange{Start: date, End: date}
	return scheduling.BuildGrid(appts, rng, scheduling.GenerateTimeSlots(8, 10))
}

func TestGridTableLaysOutSlotsByDay(t *testing.T) {
	table := GridTable(dayGrid())

	assert.Equal(t, []string{"Time", "Wed 15 May"}, table.Headers)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, []string{"08:00", ""}, table.Rows[0])
	assert.Equal(t, "09:00 Ana (Confirmed)\n09:45 Budi (No show)", table.Rows[1][1])
	assert.Equal(t, []string{"Other", "22:00 #3 (Completed)"}, table.Rows[3])
	assert.Equal(t, "Schedule 2024-05-15", table.Title)
}

type gridSourceStub struct {
	grid scheduling.Grid
	err  error
}

func (g gridSourceStub) Grid(context.Context, models.Actor) (scheduling.Grid, error) {
	return g.grid, g.err
}

func TestExportServiceRendersCSV(t *testing.T) {
	svc := NewExportService(gridSourceStub{grid: dayGrid()})

	file, err := svc.Export(context.Background(), psychologist(), "CSV")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "schedule_2024-05-15_2024-05-15.csv", file.Filename)

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestExportServiceRendersPDF(t *testing.T) {
	svc := NewExportService(gridSourceStub{grid: dayGrid()})

	file, err := svc.Export(context.Background(), psychologist(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF-")))
}

func TestExportServiceErrors(t *testing.T) {
	svc := NewExportService(gridSourceStub{grid: dayGrid()})
	_, err := svc.Export(context.Background(), psychologist(), "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	failing := NewExportService(gridSourceStub{err: appErrors.Clone(appErrors.ErrNetwork, "")})
	_, err = failing.Export(context.Background(), psychologist(), "csv")
	assert.True(t, errors.Is(err, appErrors.ErrNetwork))
}
