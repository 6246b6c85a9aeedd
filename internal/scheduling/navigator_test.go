package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/psy-schedule-api/internal/models"
)

func fixedClock(day string) func() time.Time {
	d := models.MustParseDate(day)
	return func() time.Time {
		return time.Date(d.Year, d.Month, d.Day, 10, 0, 0, 0, time.UTC)
	}
}

func TestNavigatorWeekRangeFromWednesday(t *testing.T) {
	nav := NewNavigator(models.ViewWeek, WithClock(fixedClock("2024-05-15")), WithLocation(time.UTC))
	require.Equal(t, time.Wednesday, nav.Anchor().Weekday())

	rng := nav.Range()
	assert.Equal(t, models.MustParseDate("2024-05-13"), rng.Start)
	assert.Equal(t, models.MustParseDate("2024-05-19"), rng.End)
	assert.Equal(t, time.Monday, rng.Start.Weekday())
	assert.Equal(t, time.Sunday, rng.End.Weekday())
	assert.Len(t, rng.Days(), 7)
}

func TestNavigatorWeekRangeEdges(t *testing.T) {
	nav := NewNavigator(models.ViewWeek, WithClock(fixedClock("2024-05-19")), WithLocation(time.UTC))
	assert.Equal(t, models.MustParseDate("2024-05-13"), nav.Range().Start)

	nav.GoTo(models.MustParseDate("2024-05-13"))
	assert.Equal(t, models.MustParseDate("2024-05-13"), nav.Range().Start)

	nav.GoTo(models.MustParseDate("2024-03-01"))
	rng := nav.Range()
	assert.Equal(t, models.MustParseDate("2024-02-26"), rng.Start)
	assert.Equal(t, models.MustParseDate("2024-03-03"), rng.End)
}

func TestNavigatorDayStepping(t *testing.T) {
	nav := NewNavigator(models.ViewDay, WithClock(fixedClock("2024-02-28")), WithLocation(time.UTC))
	nav.Next()
	assert.Equal(t, models.MustParseDate("2024-02-29"), nav.Anchor())
	nav.Next()
	assert.Equal(t, models.MustParseDate("2024-03-01"), nav.Anchor())
	nav.Previous()
	rng := nav.Range()
	assert.Equal(t, rng.Start, rng.End)
	assert.Equal(t, models.MustParseDate("2024-02-29"), rng.Start)
}

func TestNavigatorWeekStepping(t *testing.T) {
	nav := NewNavigator(models.ViewWeek, WithClock(fixedClock("2024-05-15")), WithLocation(time.UTC))
	nav.Next()
	assert.Equal(t, models.MustParseDate("2024-05-22"), nav.Anchor())
	nav.Previous()
	nav.Previous()
	assert.Equal(t, models.MustParseDate("2024-05-08"), nav.Anchor())
}

func TestNavigatorTodayKeepsMode(t *testing.T) {
	nav := NewNavigator(models.ViewDay, WithClock(fixedClock("2024-05-15")), WithLocation(time.UTC))
	nav.Next()
	nav.Next()
	nav.Today()
	assert.Equal(t, models.MustParseDate("2024-05-15"), nav.Anchor())
	assert.Equal(t, models.ViewDay, nav.Mode())
}

func TestNavigatorSetViewModeKeepsAnchor(t *testing.T) {
	nav := NewNavigator(models.ViewDay, WithClock(fixedClock("2024-05-15")), WithLocation(time.UTC))
	require.NoError(t, nav.SetViewMode(models.ViewWeek))
	assert.Equal(t, models.MustParseDate("2024-05-15"), nav.Anchor())
	require.NoError(t, nav.SetViewMode(models.ViewDay))
	assert.Equal(t, models.MustParseDate("2024-05-15"), nav.Anchor())
	require.Error(t, nav.SetViewMode("month"))
}

func TestNavigatorNarrowViewportFallsBackToDay(t *testing.T) {
	nav := NewNavigator(models.ViewWeek, WithClock(fixedClock("2024-05-15")), WithLocation(time.UTC), WithWeekViewMinWidth(768))

	assert.False(t, nav.SetViewportWidth(1024))
	assert.Equal(t, models.ViewWeek, nav.Mode())

	assert.True(t, nav.SetViewportWidth(500))
	assert.Equal(t, models.ViewDay, nav.Mode())
	assert.Equal(t, models.MustParseDate("2024-05-15"), nav.Anchor())

	require.ErrorIs(t, nav.SetViewMode(models.ViewWeek), ErrWeekViewUnavailable)

	assert.False(t, nav.SetViewportWidth(800))
	require.NoError(t, nav.SetViewMode(models.ViewWeek))
}

func TestNavigatorRestore(t *testing.T) {
	nav := NewNavigator(models.ViewDay, WithClock(fixedClock("2024-05-15")), WithLocation(time.UTC))
	nav.Restore(NavigatorState{Anchor: models.MustParseDate("2024-01-10"), Mode: models.ViewWeek})
	assert.Equal(t, NavigatorState{Anchor: models.MustParseDate("2024-01-10"), Mode: models.ViewWeek}, nav.State())

	nav.SetViewportWidth(320)
	nav.Restore(NavigatorState{Anchor: models.MustParseDate("2024-01-10"), Mode: models.ViewWeek})
	assert.Equal(t, models.ViewDay, nav.Mode())
}

func TestNavigatorTodayUsesLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	clock := func() time.Time { return time.Date(2024, 5, 15, 20, 0, 0, 0, time.UTC) }
	nav := NewNavigator(models.ViewDay, WithClock(clock), WithLocation(jakarta))
	assert.Equal(t, models.MustParseDate("2024-05-16"), nav.Anchor())
}
