// Package events publishes committed appointment changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/pkg/config"
)

// EventTypeStatusChanged tags status-change messages.
const EventTypeStatusChanged = "appointment.status_changed"

// StatusChanged is the payload emitted after a confirmed status change.
type StatusChanged struct {
	EventID       string                   `json:"event_id"`
	AppointmentID int64                    `json:"appointment_id"`
	From          models.AppointmentStatus `json:"from"`
	To            models.AppointmentStatus `json:"to"`
	Date          models.Date              `json:"date"`
	StartTime     string                   `json:"start_time"`
	ChangedBy     string                   `json:"changed_by,omitempty"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes status-change events. A Publisher without a writer drops events.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *zap.Logger
}

// NewPublisher wraps an existing writer.
func NewPublisher(writer MessageWriter, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, topic: topic, logger: logger}
}

// NewKafkaPublisher dials nothing up front; kafka-go connects lazily on first write.
// With no brokers configured the publisher is disabled.
func NewKafkaPublisher(cfg config.EventsConfig, logger *zap.Logger) *Publisher {
	if !cfg.Enabled() {
		if logger != nil {
			logger.Warn("status-change events disabled (no kafka brokers configured)")
		}
		return NewPublisher(nil, cfg.StatusTopic, logger)
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.StatusTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return NewPublisher(writer, cfg.StatusTopic, logger)
}

// Enabled reports whether events are actually written.
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// PublishStatusChanged writes one event keyed by appointment id so changes to the
// same appointment stay ordered within a partition.
func (p *Publisher) PublishStatusChanged(ctx context.Context, evt StatusChanged) error {
	if !p.Enabled() {
		return nil
	}
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.AppointmentID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(evt.EventID)},
			{Key: "event_type", Value: []byte(EventTypeStatusChanged)},
		},
	}
	msg.Headers = injectTraceHeaders(ctx, msg.Headers)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish status event to %s: %w", p.topic, err)
	}
	p.logger.Debug("status event published",
		zap.String("event_id", evt.EventID),
		zap.Int64("appointment_id", evt.AppointmentID),
		zap.String("to", string(evt.To)),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
