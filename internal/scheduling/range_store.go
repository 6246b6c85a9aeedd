package scheduling

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

// Gateway is the scheduling backend consumed by the core.
type Gateway interface {
	FetchAppointments(ctx context.Context, rng models.CalendarRange) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, appointmentID int64, status models.AppointmentStatus) (models.Appointment, error)
	UpdateNotes(ctx context.Context, appointmentID int64, notes string) (models.Appointment, error)
}

type rangeFetcher interface {
	FetchAppointments(ctx context.Context, rng models.CalendarRange) ([]models.Appointment, error)
}

// StoreOption configures a RangeStore.
type StoreOption func(*RangeStore)

// WithStoreLogger sets the logger.
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *RangeStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStaleHook registers a callback run whenever a superseded response is dropped.
func WithStaleHook(hook func(rng models.CalendarRange)) StoreOption {
	return func(s *RangeStore) {
		s.onStale = hook
	}
}

// RangeStore holds the appointments of exactly one calendar range.
//
// Every load takes a sequence number; only the response to the most recent
// request may replace the held set. A failed fetch keeps the last good set.
type RangeStore struct {
	gateway rangeFetcher
	logger  *zap.Logger
	onStale func(models.CalendarRange)

	mu           sync.Mutex
	seq          uint64
	requested    models.CalendarRange
	hasRequested bool
	rng          models.CalendarRange
	appointments []models.Appointment
	loaded       bool
}

// NewRangeStore constructs an empty store.
func NewRangeStore(gateway rangeFetcher, opts ...StoreOption) *RangeStore {
	s := &RangeStore{gateway: gateway, logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load fetches rng and, if no newer load started meanwhile, replaces the held set
// with the result ordered by (date, start time).
func (s *RangeStore) Load(ctx context.Context, rng models.CalendarRange) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.requested = rng
	s.hasRequested = true
	s.mu.Unlock()

	appointments, err := s.gateway.FetchAppointments(ctx, rng)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.logger.Debug("discarding stale range response",
			zap.String("range", rng.String()),
			zap.Uint64("seq", seq),
			zap.Uint64("latest", s.seq))
		if s.onStale != nil {
			s.onStale(rng)
		}
		return appErrors.Clone(appErrors.ErrStale, "")
	}
	if err != nil {
		s.logger.Warn("range fetch failed, keeping last loaded range",
			zap.String("range", rng.String()),
			zap.Error(err))
		return err
	}
	sorted := make([]models.Appointment, len(appointments))
	copy(sorted, appointments)
	for i := range sorted {
		if sorted[i].StatusDisplay == "" {
			sorted[i].StatusDisplay = Label(sorted[i].Status)
		}
	}
	SortAppointments(sorted)
	s.rng = rng
	s.appointments = sorted
	s.loaded = true
	return nil
}

// Reload re-fetches the held range. Before the first successful load it retries
// the most recently requested range.
func (s *RangeStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	rng, ok := s.requested, s.hasRequested
	if s.loaded {
		rng, ok = s.rng, true
	}
	s.mu.Unlock()
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "no range loaded")
	}
	return s.Load(ctx, rng)
}

// Requested returns the range of the most recent load request.
func (s *RangeStore) Requested() (models.CalendarRange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested, s.hasRequested
}

// Snapshot returns the held range and a copy of its appointments.
func (s *RangeStore) Snapshot() (models.CalendarRange, []models.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Appointment, len(s.appointments))
	copy(out, s.appointments)
	return s.rng, out, s.loaded
}

// Find returns the held appointment with id.
func (s *RangeStore) Find(id int64) (models.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, appt := range s.appointments {
		if appt.ID == id {
			return appt, true
		}
	}
	return models.Appointment{}, false
}

// Patch replaces the held appointment with the same ID. It reports whether one was replaced.
func (s *RangeStore) Patch(appt models.Appointment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.appointments {
		if s.appointments[i].ID == appt.ID {
			s.appointments[i] = appt
			SortAppointments(s.appointments)
			return true
		}
	}
	return false
}
