package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
	"github.com/noah-isme/psy-schedule-api/pkg/middleware/requestid"
)

var _ scheduling.Gateway = (*Client)(nil)

type observerStub struct {
	ops      []string
	statuses []int
}

func (o *observerStub) ObserveGatewayCall(op string, status int, _ time.Duration) {
	o.ops = append(o.ops, op)
	o.statuses = append(o.statuses, status)
}

func week() models.CalendarRange {
	return models.CalendarRange{Start: models.MustParseDate("2024-05-13"), End: models.MustParseDate("2024-05-19")}
}

func TestFetchAppointmentsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/appointments/", r.URL.Path)
		assert.Equal(t, "2024-05-13", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-05-19", r.URL.Query().Get("end_date"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "req-1", r.Header.Get(requestid.HeaderKey))
		_, _ = w.Write([]byte(`[{"id":1,"client_name":"Ana","date":"2024-05-15","start_time":"09:00:00","end_time":"10:00:00","status":"CONFIRMED","psychologist_notes":null}]`))
	}))
	defer srv.Close()

	obs := &observerStub{}
	client := NewClient(srv.URL+"/api/", time.Second, StaticCredentials("tok"), WithObserver(obs))
	ctx := requestid.WithValue(context.Background(), "req-1")

	list, err := client.FetchAppointments(ctx, week())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, models.MustParseDate("2024-05-15"), list[0].Date)
	assert.Equal(t, models.StatusConfirmed, list[0].Status)
	assert.False(t, list[0].PsychologistNotes.Valid)
	assert.Equal(t, []string{"fetch_appointments"}, obs.ops)
	assert.Equal(t, []int{http.StatusOK}, obs.statuses)
}

func TestFetchAppointmentsPaginatedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count":2,"results":[{"id":1,"date":"2024-05-13","start_time":"08:00","status":"CONFIRMED"},{"id":2,"date":"2024-05-14","start_time":"09:00","status":"COMPLETED"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("tok"))
	list, err := client.FetchAppointments(context.Background(), week())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.StatusCompleted, list[1].Status)
}

func TestMissingTokenFailsBeforeRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials(""))
	_, err := client.FetchAppointments(context.Background(), week())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrAuthMissing))

	forwarded := NewClient(srv.URL, time.Second, ForwardedCredentials{})
	_, err = forwarded.UpdateStatus(context.Background(), 1, models.StatusCompleted)
	assert.True(t, errors.Is(err, appErrors.ErrAuthMissing))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestForwardedCredentialsUseContextToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, ForwardedCredentials{})
	list, err := client.FetchAppointments(WithToken(context.Background(), "user-token"), week())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateStatusSendsPatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/appointments/42/status/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "COMPLETED", body["status"])
		_, _ = w.Write([]byte(`{"id":42,"date":"2024-05-15","start_time":"09:00:00","status":"COMPLETED","status_display":"Completed"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("tok"))
	appt, err := client.UpdateStatus(context.Background(), 42, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, appt.Status)
	assert.Equal(t, "Completed", appt.StatusDisplay)
}

func TestUpdateNotesSendsPatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appointments/7/notes/", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "follow up", body["psychologist_notes"])
		_, _ = w.Write([]byte(`{"id":7,"psychologist_notes":"follow up"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("tok"))
	appt, err := client.UpdateNotes(context.Background(), 7, "follow up")
	require.NoError(t, err)
	assert.Equal(t, models.Some("follow up"), appt.PsychologistNotes)
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   *appErrors.Error
	}{
		{http.StatusUnauthorized, appErrors.ErrAuthMissing},
		{http.StatusForbidden, appErrors.ErrAuthMissing},
		{http.StatusBadRequest, appErrors.ErrValidation},
		{http.StatusConflict, appErrors.ErrValidation},
		{http.StatusUnprocessableEntity, appErrors.ErrValidation},
		{http.StatusNotFound, appErrors.ErrNotFound},
		{http.StatusInternalServerError, appErrors.ErrNetwork},
		{http.StatusBadGateway, appErrors.ErrNetwork},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"detail":"backend says no"}`))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, time.Second, StaticCredentials("tok"))
			_, err := client.UpdateStatus(context.Background(), 1, models.StatusCompleted)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "status %d", tc.status)
			assert.Equal(t, "backend says no", appErrors.FromError(err).Message)
		})
	}
}

func TestUndecodableBodyIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second, StaticCredentials("tok"))
	_, err := client.FetchAppointments(context.Background(), week())
	assert.True(t, errors.Is(err, appErrors.ErrNetwork))
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	obs := &observerStub{}
	client := NewClient(url, 200*time.Millisecond, StaticCredentials("tok"), WithObserver(obs))
	_, err := client.FetchAppointments(context.Background(), week())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNetwork))
	assert.Equal(t, []int{http.StatusServiceUnavailable}, obs.statuses)
}
