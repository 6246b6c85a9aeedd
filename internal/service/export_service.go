package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/psy-schedule-api/internal/dto"
	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
	"github.com/noah-isme/psy-schedule-api/pkg/export"
)

type gridSource interface {
	Grid(ctx context.Context, actor models.Actor) (scheduling.Grid, error)
}

// ExportService renders the actor's current grid as a downloadable file.
type ExportService struct {
	grids gridSource
}

// NewExportService constructs the export service.
func NewExportService(grids gridSource) *ExportService {
	return &ExportService{grids: grids}
}

// Export renders the loaded range in format ("csv" or "pdf").
func (s *ExportService) Export(ctx context.Context, actor models.Actor, format string) (*dto.ExportFile, error) {
	renderer, err := export.ForFormat(strings.ToLower(format))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	grid, err := s.grids.Grid(ctx, actor)
	if err != nil {
		return nil, err
	}
	body, err := renderer.Render(GridTable(grid))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("schedule_%s_%s.%s", grid.Range.Start, grid.Range.End, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// GridTable lays a grid out as slot rows by day columns. Appointments outside the
// slot axis are appended under an "Other" row.
func GridTable(grid scheduling.Grid) export.Table {
	headers := make([]string, 0, len(grid.Days)+1)
	headers = append(headers, "Time")
	for _, day := range grid.Days {
		headers = append(headers, day.Date.Time().Format("Mon 02 Jan"))
	}

	rows := make([][]string, 0, len(grid.Slots)+1)
	for i, slot := range grid.Slots {
		row := make([]string, 0, len(headers))
		row = append(row, slot)
		for _, day := range grid.Days {
			row = append(row, describeAll(day.Cells[i].Appointments))
		}
		rows = append(rows, row)
	}

	if len(grid.Unplaced) > 0 {
		row := make([]string, len(headers))
		row[0] = "Other"
		for i, day := range grid.Days {
			var matching []models.Appointment
			for _, appt := range grid.Unplaced {
				if appt.Date == day.Date {
					matching = append(matching, appt)
				}
			}
			row[i+1] = describeAll(matching)
		}
		rows = append(rows, row)
	}

	title := "Schedule " + grid.Range.Start.String()
	if grid.Range.End != grid.Range.Start {
		title += " to " + grid.Range.End.String()
	}
	return export.Table{Title: title, Headers: headers, Rows: rows}
}

func describeAll(appts []models.Appointment) string {
	lines := make([]string, 0, len(appts))
	for _, appt := range appts {
		lines = append(lines, describe(appt))
	}
	return strings.Join(lines, "\n")
}

func describe(appt models.Appointment) string {
	label := appt.StatusDisplay
	if label == "" {
		label = scheduling.Label(appt.Status)
	}
	start := appt.StartTime
	if len(start) > 5 {
		start = start[:5]
	}
	name := appt.ClientName
	if name == "" {
		name = fmt.Sprintf("#%d", appt.ID)
	}
	return fmt.Sprintf("%s %s (%s)", start, name, label)
}
