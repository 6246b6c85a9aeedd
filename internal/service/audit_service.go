package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/pkg/config"
	"github.com/noah-isme/psy-schedule-api/pkg/jobs"
)

const auditResourceAppointment = "appointment"

type auditStore interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AuditService records committed appointment changes asynchronously.
// Without a store it accepts and discards everything.
type AuditService struct {
	repo    auditStore
	queue   *jobs.Queue[models.AuditLog]
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService builds the service and its worker queue. Call Start before recording.
func NewAuditService(repo auditStore, cfg config.AuditConfig, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AuditService{repo: repo, metrics: metrics, logger: logger}
	if repo == nil {
		return svc
	}
	svc.queue = jobs.NewQueue("audit", svc.persist, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Enabled reports whether changes are persisted.
func (s *AuditService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Start launches the workers.
func (s *AuditService) Start(ctx context.Context) {
	if s.Enabled() {
		s.queue.Start(ctx)
	}
}

// Stop flushes buffered entries and stops the workers.
func (s *AuditService) Stop() {
	if s.Enabled() {
		s.queue.Stop()
	}
}

// RecordChange queues an audit row describing before → after. It never blocks the caller.
func (s *AuditService) RecordChange(actor models.Actor, action string, before, after models.Appointment) {
	if !s.Enabled() {
		return
	}
	entry := models.AuditLog{
		Action:    action,
		Resource:  auditResourceAppointment,
		OldValues: s.encode(before),
		NewValues: s.encode(after),
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	resourceID := strconv.FormatInt(after.ID, 10)
	entry.ResourceID = &resourceID

	if _, err := s.queue.TryEnqueue(entry); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			s.logger.Warn("audit queue full, dropping entry", zap.String("action", action), zap.Int64("appointment_id", after.ID))
			return
		}
		s.logger.Warn("audit entry not queued", zap.Error(err))
	}
}

// History returns the most recent audit rows of one appointment.
func (s *AuditService) History(ctx context.Context, appointmentID int64, limit int) ([]models.AuditLog, error) {
	if !s.Enabled() {
		return []models.AuditLog{}, nil
	}
	start := time.Now()
	logs, err := s.repo.List(ctx, models.AuditFilter{
		Resource:   auditResourceAppointment,
		ResourceID: strconv.FormatInt(appointmentID, 10),
		Limit:      limit,
	})
	s.metrics.ObserveDBQuery("audit_list", time.Since(start))
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}

func (s *AuditService) persist(ctx context.Context, job jobs.Job[models.AuditLog]) error {
	entry := job.Payload
	if entry.ID == "" {
		entry.ID = job.ID
	}
	start := time.Now()
	err := s.repo.Create(ctx, &entry)
	s.metrics.ObserveDBQuery("audit_create", time.Since(start))
	return err
}

func (s *AuditService) encode(appt models.Appointment) []byte {
	if appt.ID == 0 {
		return nil
	}
	snapshot := map[string]interface{}{
		"status":             appt.Status,
		"psychologist_notes": appt.PsychologistNotes,
		"date":               appt.Date,
		"start_time":         appt.StartTime,
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Warn("audit snapshot encode failed", zap.Error(err))
		return nil
	}
	return raw
}
