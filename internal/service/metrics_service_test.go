package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/schedule", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/schedule", http.StatusOK, 40*time.Millisecond)
	m.ObserveGatewayCall("fetch_appointments", http.StatusOK, 10*time.Millisecond)
	m.ObserveGatewayCall("update_status", http.StatusServiceUnavailable, 10*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordStaleDiscard()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snap.GatewayCallsTotal)
	assert.Equal(t, uint64(1), snap.GatewayFailuresTotal)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(1), snap.StaleResponsesDiscarded)
	assert.Equal(t, int64(1), snap.ActiveSessions)
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordConfirmation(ConfirmationCommitted)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "confirmation")
}

func TestMetricsNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.ObserveGatewayCall("fetch_appointments", http.StatusOK, time.Millisecond)
		m.RecordConfirmation(ConfirmationStaged)
		m.SessionOpened()
	})
	assert.Zero(t, m.Snapshot().RequestsTotal)
}
