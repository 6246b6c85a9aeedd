// Package gateway talks to the marketplace REST backend that owns appointments.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
	"github.com/noah-isme/psy-schedule-api/pkg/middleware/requestid"
)

const maxErrorBody = 4 << 10

// Observer receives timing for every backend call.
type Observer interface {
	ObserveGatewayCall(operation string, status int, duration time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver wires call metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client is the REST adapter for appointment reads and writes.
type Client struct {
	baseURL  string
	http     *http.Client
	creds    CredentialProvider
	observer Observer
	logger   *zap.Logger
}

// NewClient builds a client rooted at baseURL. Requests are traced through otelhttp.
func NewClient(baseURL string, timeout time.Duration, creds CredentialProvider, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		creds:  creds,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type listEnvelope struct {
	Results []models.Appointment `json:"results"`
}

// FetchAppointments lists appointments dated within rng, inclusive.
func (c *Client) FetchAppointments(ctx context.Context, rng models.CalendarRange) ([]models.Appointment, error) {
	query := url.Values{}
	query.Set("start_date", rng.Start.String())
	query.Set("end_date", rng.End.String())

	body, err := c.do(ctx, "fetch_appointments", http.MethodGet, "/appointments/?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []models.Appointment
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, appErrors.WrapKind(err, appErrors.ErrNetwork, "undecodable appointment list")
		}
		return list, nil
	}

	var env listEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, appErrors.WrapKind(err, appErrors.ErrNetwork, "undecodable appointment list")
	}
	if env.Results == nil {
		return []models.Appointment{}, nil
	}
	return env.Results, nil
}

// UpdateStatus moves one appointment to status.
func (c *Client) UpdateStatus(ctx context.Context, appointmentID int64, status models.AppointmentStatus) (models.Appointment, error) {
	payload := map[string]string{"status": string(status)}
	return c.patchAppointment(ctx, "update_status", fmt.Sprintf("/appointments/%d/status/", appointmentID), payload)
}

// UpdateNotes replaces the psychologist notes of one appointment.
func (c *Client) UpdateNotes(ctx context.Context, appointmentID int64, notes string) (models.Appointment, error) {
	payload := map[string]string{"psychologist_notes": notes}
	return c.patchAppointment(ctx, "update_notes", fmt.Sprintf("/appointments/%d/notes/", appointmentID), payload)
}

func (c *Client) patchAppointment(ctx context.Context, op, path string, payload any) (models.Appointment, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.Appointment{}, appErrors.WrapKind(err, appErrors.ErrValidation, "encode request")
	}
	body, err := c.do(ctx, op, http.MethodPatch, path, raw)
	if err != nil {
		return models.Appointment{}, err
	}

	var appt models.Appointment
	if len(bytes.TrimSpace(body)) == 0 {
		return appt, nil
	}
	if err := json.Unmarshal(body, &appt); err != nil {
		return models.Appointment{}, appErrors.WrapKind(err, appErrors.ErrNetwork, "undecodable appointment")
	}
	return appt, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	if c.creds == nil {
		return nil, appErrors.Clone(appErrors.ErrAuthMissing, "no credential provider configured")
	}
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, appErrors.WrapKind(err, appErrors.ErrNetwork, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set(requestid.HeaderKey, reqID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.observe(op, http.StatusServiceUnavailable, duration)
		c.logger.Warn("gateway request failed", zap.String("operation", op), zap.Error(err))
		return nil, appErrors.WrapKind(err, appErrors.ErrNetwork, "")
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, duration)

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, appErrors.WrapKind(err, appErrors.ErrNetwork, "read response")
		}
		return data, nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	mapped := mapStatus(resp.StatusCode, detail)
	c.logger.Debug("gateway rejected request",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.String("code", mapped.Code),
	)
	return nil, mapped
}

func (c *Client) observe(op string, status int, duration time.Duration) {
	if c.observer != nil {
		c.observer.ObserveGatewayCall(op, status, duration)
	}
}

// mapStatus turns a non-2xx backend response into a typed error.
func mapStatus(status int, body []byte) *appErrors.Error {
	message := backendMessage(body)
	cause := fmt.Errorf("backend responded %d", status)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return appErrors.WrapKind(cause, appErrors.ErrAuthMissing, message)
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return appErrors.WrapKind(cause, appErrors.ErrValidation, message)
	case http.StatusNotFound:
		return appErrors.WrapKind(cause, appErrors.ErrNotFound, message)
	default:
		return appErrors.WrapKind(cause, appErrors.ErrNetwork, message)
	}
}

// backendMessage extracts {"detail"}, {"error"} or {"message"} when present.
func backendMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
