package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

// StatusChange is the payload staged behind the confirmation gate.
type StatusChange struct {
	AppointmentID int64                    `json:"appointment_id"`
	From          models.AppointmentStatus `json:"from"`
	Target        models.AppointmentStatus `json:"target"`
}

// Listener observes committed mutations.
type Listener func(ctx context.Context, before, after models.Appointment)

type appointmentWriter interface {
	UpdateStatus(ctx context.Context, appointmentID int64, status models.AppointmentStatus) (models.Appointment, error)
	UpdateNotes(ctx context.Context, appointmentID int64, notes string) (models.Appointment, error)
}

// Workflow gates status changes behind explicit confirmation and keeps the
// range store in step with committed mutations.
type Workflow struct {
	writer appointmentWriter
	store  *RangeStore
	gate   *Gate[StatusChange]
	logger *zap.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// NewWorkflow wires a workflow over writer and store.
func NewWorkflow(writer appointmentWriter, store *RangeStore, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		writer: writer,
		store:  store,
		gate:   NewGate[StatusChange](),
		logger: logger,
	}
}

// OnChange registers a listener for committed status and notes changes.
func (w *Workflow) OnChange(l Listener) {
	if l == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// RequestStatusChange stages a move of appt to target. Illegal moves are rejected
// with a validation error and nothing is staged.
func (w *Workflow) RequestStatusChange(appt models.Appointment, target models.AppointmentStatus) (StatusChange, error) {
	if !CanTransition(appt.Status, target) {
		return StatusChange{}, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("cannot move appointment %d from %s to %s", appt.ID, appt.Status, target))
	}
	change := StatusChange{AppointmentID: appt.ID, From: appt.Status, Target: target}
	w.gate.Stage(change)
	return change, nil
}

// RequestStatusChangeAs is RequestStatusChange for an actor with role.
func (w *Workflow) RequestStatusChangeAs(role models.UserRole, appt models.Appointment, target models.AppointmentStatus) (StatusChange, error) {
	if !canManage(role) {
		return StatusChange{}, appErrors.Clone(appErrors.ErrForbidden, "role cannot change appointment status")
	}
	return w.RequestStatusChange(appt, target)
}

// Staged returns the change awaiting confirmation.
func (w *Workflow) Staged() (StatusChange, bool) {
	return w.gate.Staged()
}

// Cancel drops the staged change. No gateway call is made.
func (w *Workflow) Cancel() bool {
	return w.gate.Cancel()
}

// Confirm commits the staged change through the gateway. On success the local
// appointment is patched, listeners run and the current range is reloaded. On
// failure nothing local changes. Either way the gate is idle afterwards.
func (w *Workflow) Confirm(ctx context.Context) (models.Appointment, error) {
	var committed models.Appointment
	err := w.gate.Confirm(ctx, func(ctx context.Context, change StatusChange) error {
		updated, err := w.writer.UpdateStatus(ctx, change.AppointmentID, change.Target)
		if err != nil {
			w.logger.Warn("status update rejected",
				zap.Int64("appointment_id", change.AppointmentID),
				zap.String("target", string(change.Target)),
				zap.Error(err))
			return err
		}
		before, _ := w.store.Find(change.AppointmentID)
		after := merge(before, updated, change.AppointmentID)
		after.Status = change.Target
		if updated.ID == change.AppointmentID && updated.StatusDisplay != "" {
			after.StatusDisplay = updated.StatusDisplay
		} else {
			after.StatusDisplay = Label(change.Target)
		}
		committed = after
		w.apply(ctx, before, after)
		return w.reload(ctx)
	})
	return committed, err
}

// UpdateNotes writes psychologist notes directly, without confirmation.
func (w *Workflow) UpdateNotes(ctx context.Context, appointmentID int64, notes string) (models.Appointment, error) {
	updated, err := w.writer.UpdateNotes(ctx, appointmentID, notes)
	if err != nil {
		return models.Appointment{}, err
	}
	before, _ := w.store.Find(appointmentID)
	after := merge(before, updated, appointmentID)
	if updated.ID != appointmentID || !updated.PsychologistNotes.Valid {
		after.PsychologistNotes = models.Some(notes)
	}
	w.apply(ctx, before, after)
	return after, nil
}

func (w *Workflow) apply(ctx context.Context, before, after models.Appointment) {
	w.store.Patch(after)
	w.mu.RLock()
	listeners := append([]Listener(nil), w.listeners...)
	w.mu.RUnlock()
	for _, l := range listeners {
		l(ctx, before, after)
	}
}

func (w *Workflow) reload(ctx context.Context) error {
	if _, ok := w.store.Requested(); !ok {
		return nil
	}
	err := w.store.Reload(ctx)
	if err == nil || errors.Is(err, appErrors.ErrStale) {
		return nil
	}
	kind := appErrors.FromError(err)
	return appErrors.Wrap(err, kind.Code, kind.Status, "status updated but range reload failed")
}

// merge prefers the backend's copy and falls back to the local one.
func merge(local, remote models.Appointment, id int64) models.Appointment {
	if remote.ID == id {
		return remote
	}
	if local.ID == 0 {
		local.ID = id
	}
	return local
}
