package scheduling

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

func weekOf(monday string) models.CalendarRange {
	start := models.MustParseDate(monday)
	return models.CalendarRange{Start: start, End: start.AddDays(6)}
}

func TestRangeStoreLoadSortsAndReplaces(t *testing.T) {
	gw := newGatewayStub(
		appt(3, "2024-05-14", "08:00"),
		appt(1, "2024-05-13", "11:00"),
		appt(2, "2024-05-13", "09:00"),
		appt(9, "2024-05-21", "09:00"),
	)
	store := NewRangeStore(gw)

	require.NoError(t, store.Load(context.Background(), weekOf("2024-05-13")))
	rng, list, loaded := store.Snapshot()
	require.True(t, loaded)
	assert.Equal(t, weekOf("2024-05-13"), rng)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{2, 1, 3}, []int64{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, "Confirmed", list[0].StatusDisplay)

	require.NoError(t, store.Load(context.Background(), weekOf("2024-05-20")))
	_, list, _ = store.Snapshot()
	require.Len(t, list, 1)
	assert.Equal(t, int64(9), list[0].ID)
	_, found := store.Find(1)
	assert.False(t, found)
}

func TestRangeStoreFetchFailureKeepsLastGood(t *testing.T) {
	gw := newGatewayStub(appt(1, "2024-05-13", "09:00"))
	store := NewRangeStore(gw)
	require.NoError(t, store.Load(context.Background(), weekOf("2024-05-13")))

	gw.fetchErr = appErrors.Clone(appErrors.ErrNetwork, "")
	err := store.Load(context.Background(), weekOf("2024-05-20"))
	require.ErrorIs(t, err, appErrors.ErrNetwork)

	rng, list, loaded := store.Snapshot()
	require.True(t, loaded)
	assert.Equal(t, weekOf("2024-05-13"), rng)
	assert.Len(t, list, 1)
}

func TestRangeStoreReloadWithoutLoad(t *testing.T) {
	store := NewRangeStore(newGatewayStub())
	require.ErrorIs(t, store.Reload(context.Background()), appErrors.ErrConflict)
}

func TestRangeStoreReloadRefetchesHeldRange(t *testing.T) {
	gw := newGatewayStub(appt(1, "2024-05-13", "09:00"))
	store := NewRangeStore(gw)
	require.NoError(t, store.Load(context.Background(), weekOf("2024-05-13")))
	require.NoError(t, store.Reload(context.Background()))
	assert.Equal(t, 2, gw.fetchCount())
	assert.Equal(t, weekOf("2024-05-13"), gw.fetches[1])
}

func TestRangeStoreReloadAfterFailedLoadKeepsHeldRange(t *testing.T) {
	gw := newGatewayStub(appt(1, "2024-05-13", "09:00"))
	store := NewRangeStore(gw)
	require.NoError(t, store.Load(context.Background(), weekOf("2024-05-13")))

	gw.fetchErr = appErrors.Clone(appErrors.ErrNetwork, "")
	require.Error(t, store.Load(context.Background(), weekOf("2024-05-20")))

	gw.fetchErr = nil
	require.NoError(t, store.Reload(context.Background()))
	assert.Equal(t, weekOf("2024-05-13"), gw.fetches[2])

	rng, list, loaded := store.Snapshot()
	require.True(t, loaded)
	assert.Equal(t, weekOf("2024-05-13"), rng)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)
}

func TestRangeStoreReloadRetriesFirstFailedLoad(t *testing.T) {
	gw := newGatewayStub(appt(1, "2024-05-13", "09:00"))
	gw.fetchErr = appErrors.Clone(appErrors.ErrNetwork, "")
	store := NewRangeStore(gw)
	require.Error(t, store.Load(context.Background(), weekOf("2024-05-13")))

	gw.fetchErr = nil
	require.NoError(t, store.Reload(context.Background()))
	_, list, loaded := store.Snapshot()
	require.True(t, loaded)
	assert.Len(t, list, 1)
}

func TestRangeStoreDiscardsStaleResponse(t *testing.T) {
	fetcher := newBlockingFetcher()
	var staleRanges []models.CalendarRange
	store := NewRangeStore(fetcher, WithStaleHook(func(rng models.CalendarRange) {
		staleRanges = append(staleRanges, rng)
	}))
	first, second := weekOf("2024-05-13"), weekOf("2024-05-20")

	firstDone := make(chan error, 1)
	go func() { firstDone <- store.Load(context.Background(), first) }()
	<-fetcher.started

	secondDone := make(chan error, 1)
	go func() { secondDone <- store.Load(context.Background(), second) }()
	<-fetcher.started

	fetcher.channel(second.Start) <- []models.Appointment{appt(20, "2024-05-20", "10:00")}
	require.NoError(t, <-secondDone)

	fetcher.channel(first.Start) <- []models.Appointment{appt(10, "2024-05-13", "10:00")}
	require.ErrorIs(t, <-firstDone, appErrors.ErrStale)

	rng, list, _ := store.Snapshot()
	assert.Equal(t, second, rng)
	require.Len(t, list, 1)
	assert.Equal(t, int64(20), list[0].ID)
	assert.Equal(t, []models.CalendarRange{first}, staleRanges)
}

func TestRangeStorePatch(t *testing.T) {
	gw := newGatewayStub(appt(1, "2024-05-13", "09:00"), appt(2, "2024-05-13", "10:00"))
	store := NewRangeStore(gw)
	require.NoError(t, store.Load(context.Background(), weekOf("2024-05-13")))

	updated, _ := store.Find(2)
	updated.Status = models.StatusCompleted
	require.True(t, store.Patch(updated))
	got, ok := store.Find(2)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, got.Status)

	assert.False(t, store.Patch(appt(99, "2024-05-13", "10:00")))
}
