package models

import "time"

// SystemMetrics is a JSON summary of the service's Prometheus counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	GatewayCallsTotal        uint64    `json:"gateway_calls_total"`
	GatewayFailuresTotal     uint64    `json:"gateway_failures_total"`
	AverageGatewayDurationMs float64   `json:"average_gateway_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	StaleResponsesDiscarded  uint64    `json:"stale_responses_discarded"`
	ActiveSessions           int64     `json:"active_sessions"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
