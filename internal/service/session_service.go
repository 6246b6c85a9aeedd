package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/noah-isme/psy-schedule-api/internal/dto"
	"github.com/noah-isme/psy-schedule-api/internal/events"
	"github.com/noah-isme/psy-schedule-api/internal/gateway"
	"github.com/noah-isme/psy-schedule-api/internal/models"
	"github.com/noah-isme/psy-schedule-api/internal/scheduling"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
	"github.com/noah-isme/psy-schedule-api/pkg/tracing"
)

type viewStateStore interface {
	Get(ctx context.Context, userID string) (scheduling.NavigatorState, error)
	Save(ctx context.Context, userID string, state scheduling.NavigatorState) error
}

type changeRecorder interface {
	RecordChange(actor models.Actor, action string, before, after models.Appointment)
}

type statusPublisher interface {
	PublishStatusChanged(ctx context.Context, evt events.StatusChanged) error
}

// SessionConfig shapes the sessions created by SessionManager.
type SessionConfig struct {
	TTL              time.Duration
	StartHour        int
	EndHour          int
	WeekViewMinWidth int
	DefaultView      models.ViewMode
	Location         *time.Location
	Now              func() time.Time
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithViewStateStore persists anchor and view mode across sessions.
func WithViewStateStore(store viewStateStore) SessionOption {
	return func(m *SessionManager) {
		m.viewStates = store
	}
}

// WithChangeRecorder sends committed changes to the audit trail.
func WithChangeRecorder(recorder changeRecorder) SessionOption {
	return func(m *SessionManager) {
		m.recorder = recorder
	}
}

// WithStatusPublisher emits status-change events.
func WithStatusPublisher(publisher statusPublisher) SessionOption {
	return func(m *SessionManager) {
		m.publisher = publisher
	}
}

// WithSessionMetrics wires session and workflow counters.
func WithSessionMetrics(metrics *MetricsService) SessionOption {
	return func(m *SessionManager) {
		m.metrics = metrics
	}
}

// Session is one user's calendar: navigator, loaded range and pending confirmation.
type Session struct {
	userID    string
	mu        sync.Mutex
	navigator *scheduling.Navigator
	store     *scheduling.RangeStore
	workflow  *scheduling.Workflow
	lastSeen  time.Time
}

// SessionManager keeps one scheduling session per authenticated user.
type SessionManager struct {
	gateway    scheduling.Gateway
	viewStates viewStateStore
	recorder   changeRecorder
	publisher  statusPublisher
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        SessionConfig
	slots      []string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager constructs the manager.
func NewSessionManager(gw scheduling.Gateway, cfg SessionConfig, validate *validator.Validate, logger *zap.Logger, opts ...SessionOption) *SessionManager {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if !cfg.DefaultView.Valid() {
		cfg.DefaultView = models.ViewWeek
	}
	m := &SessionManager{
		gateway:   gw,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		slots:     scheduling.GenerateTimeSlots(cfg.StartHour, cfg.EndHour),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.validator.RegisterValidation("view_mode", func(fl validator.FieldLevel) bool {
		return models.ViewMode(strings.ToLower(fl.Field().String())).Valid()
	})
	m.validator.RegisterValidation("appointment_status", func(fl validator.FieldLevel) bool {
		return models.AppointmentStatus(fl.Field().String()).Valid()
	})
	return m
}

// Slots returns the configured time-slot axis.
func (m *SessionManager) Slots() []string {
	return append([]string(nil), m.slots...)
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// View returns the current calendar, loading the range when it has not been fetched yet.
func (m *SessionManager) View(ctx context.Context, actor models.Actor) (*dto.ScheduleView, error) {
	ctx = m.scope(ctx, actor)
	sess := m.session(ctx, actor)
	rng := sess.currentRange()
	if loadedRange, _, loaded := sess.store.Snapshot(); !loaded || loadedRange != rng {
		return m.load(ctx, sess, rng)
	}
	return m.render(sess, nil), nil
}

// Navigate moves the anchor and loads the new range.
func (m *SessionManager) Navigate(ctx context.Context, actor models.Actor, req dto.NavigateRequest) (*dto.ScheduleView, error) {
	if err := m.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid navigation payload")
	}
	if req.Action == dto.NavigateGoTo && req.Date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required for goto")
	}

	ctx = m.scope(ctx, actor)
	sess := m.session(ctx, actor)

	sess.mu.Lock()
	switch req.Action {
	case dto.NavigatePrevious:
		sess.navigator.Previous()
	case dto.NavigateNext:
		sess.navigator.Next()
	case dto.NavigateToday:
		sess.navigator.Today()
	case dto.NavigateGoTo:
		sess.navigator.GoTo(req.Date)
	}
	state := sess.navigator.State()
	rng := sess.navigator.Range()
	sess.mu.Unlock()

	m.saveState(ctx, actor.UserID, state)
	return m.load(ctx, sess, rng)
}

// SetViewMode switches between day and week views.
func (m *SessionManager) SetViewMode(ctx context.Context, actor models.Actor, req dto.ViewModeRequest) (*dto.ScheduleView, error) {
	if err := m.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid view mode payload")
	}

	ctx = m.scope(ctx, actor)
	sess := m.session(ctx, actor)

	sess.mu.Lock()
	err := sess.navigator.SetViewMode(models.ViewMode(strings.ToLower(req.Mode)))
	state := sess.navigator.State()
	rng := sess.navigator.Range()
	sess.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.saveState(ctx, actor.UserID, state)
	return m.load(ctx, sess, rng)
}

// SetViewport records the client's width; week view falls back to day when it no longer fits.
func (m *SessionManager) SetViewport(ctx context.Context, actor models.Actor, req dto.ViewportRequest) (*dto.ScheduleView, error) {
	if err := m.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid viewport payload")
	}

	ctx = m.scope(ctx, actor)
	sess := m.session(ctx, actor)

	sess.mu.Lock()
	changed := sess.navigator.SetViewportWidth(req.Width)
	rng := sess.navigator.Range()
	sess.mu.Unlock()

	if !changed {
		return m.View(ctx, actor)
	}
	return m.load(ctx, sess, rng)
}

// Reload re-fetches the current range.
func (m *SessionManager) Reload(ctx context.Context, actor models.Actor) (*dto.ScheduleView, error) {
	ctx = m.scope(ctx, actor)
	sess := m.session(ctx, actor)
	return m.load(ctx, sess, sess.currentRange())
}

// Grid builds the grid of the loaded range, loading it first if needed.
func (m *SessionManager) Grid(ctx context.Context, actor models.Actor) (scheduling.Grid, error) {
	if _, err := m.View(ctx, actor); err != nil {
		return scheduling.Grid{}, err
	}
	sess := m.session(ctx, actor)
	rng, appts, loaded := sess.store.Snapshot()
	if !loaded {
		rng = sess.currentRange()
	}
	return scheduling.BuildGrid(appts, rng, m.slots), nil
}

// Transitions lists the statuses an appointment in the loaded range may move to.
func (m *SessionManager) Transitions(ctx context.Context, actor models.Actor, appointmentID int64) (*dto.TransitionsResponse, error) {
	sess := m.session(m.scope(ctx, actor), actor)
	appt, err := findLoaded(sess, appointmentID)
	if err != nil {
		return nil, err
	}
	targets := scheduling.AllowedTargetsAs(actor.Role, appt.Status)
	options := make([]dto.TransitionOption, 0, len(targets))
	for _, target := range targets {
		options = append(options, dto.TransitionOption{Status: target, Label: scheduling.Label(target)})
	}
	return &dto.TransitionsResponse{
		AppointmentID: appt.ID,
		Current:       appt.Status,
		CurrentLabel:  scheduling.Label(appt.Status),
		Terminal:      scheduling.IsTerminal(appt.Status),
		Targets:       options,
	}, nil
}

// StageStatusChange validates and stages a status change. Nothing is written until Confirm.
func (m *SessionManager) StageStatusChange(ctx context.Context, actor models.Actor, appointmentID int64, req dto.StatusChangeRequest) (*dto.StagedChangeResponse, error) {
	if err := m.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target, err := scheduling.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}

	sess := m.session(m.scope(ctx, actor), actor)
	appt, err := findLoaded(sess, appointmentID)
	if err != nil {
		return nil, err
	}
	change, err := sess.workflow.RequestStatusChangeAs(actor.Role, appt, target)
	if err != nil {
		return nil, err
	}
	m.recordConfirmation(ConfirmationStaged)

	return &dto.StagedChangeResponse{
		Change:      change,
		TargetLabel: scheduling.Label(target),
		Prompt: fmt.Sprintf("Change appointment #%d (%s) from %s to %s?",
			appt.ID, appt.ClientName, scheduling.Label(appt.Status), scheduling.Label(target)),
	}, nil
}

// Confirm commits the staged change. The confirmation is consumed whatever the outcome.
func (m *SessionManager) Confirm(ctx context.Context, actor models.Actor) (models.Appointment, error) {
	ctx = m.scope(ctx, actor)
	sess := m.session(ctx, actor)
	appt, err := sess.workflow.Confirm(ctx)
	if errors.Is(err, scheduling.ErrNothingStaged) {
		return appt, err
	}
	if appt.ID == 0 {
		m.recordConfirmation(ConfirmationFailed)
		return appt, err
	}
	// committed even when the follow-up reload failed
	m.recordConfirmation(ConfirmationCommitted)
	return appt, err
}

// Cancel discards the staged change.
func (m *SessionManager) Cancel(ctx context.Context, actor models.Actor) bool {
	sess := m.session(m.scope(ctx, actor), actor)
	cancelled := sess.workflow.Cancel()
	if cancelled {
		m.recordConfirmation(ConfirmationCancelled)
	}
	return cancelled
}

// UpdateNotes writes psychologist notes immediately.
func (m *SessionManager) UpdateNotes(ctx context.Context, actor models.Actor, appointmentID int64, req dto.NotesRequest) (models.Appointment, error) {
	if err := m.validator.Struct(req); err != nil {
		return models.Appointment{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notes payload")
	}
	if !canWriteNotes(actor.Role) {
		return models.Appointment{}, appErrors.Clone(appErrors.ErrForbidden, "role cannot edit session notes")
	}
	ctx = m.scope(ctx, actor)
	sess := m.session(ctx, actor)
	return sess.workflow.UpdateNotes(ctx, appointmentID, req.Notes)
}

// EvictIdle drops sessions unused for longer than the TTL and returns how many went.
func (m *SessionManager) EvictIdle() int {
	cutoff := m.cfg.Now().Add(-m.cfg.TTL)
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for userID, sess := range m.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(m.sessions, userID)
			m.metrics.SessionClosed()
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Debug("evicted idle sessions", zap.Int("count", evicted))
	}
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

func (m *SessionManager) load(ctx context.Context, sess *Session, rng models.CalendarRange) (*dto.ScheduleView, error) {
	ctx, span := tracing.Tracer("psy-schedule/session").Start(ctx, "schedule.load")
	defer span.End()
	span.SetAttributes(
		attribute.String("schedule.range_start", rng.Start.String()),
		attribute.String("schedule.range_end", rng.End.String()),
	)

	err := sess.store.Load(ctx, rng)
	if err != nil && !errors.Is(err, appErrors.ErrStale) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "range load failed")
	}
	switch {
	case err == nil:
		return m.render(sess, nil), nil
	case errors.Is(err, appErrors.ErrStale):
		// a newer request owns the store now; show whatever it holds
		return m.render(sess, nil), nil
	}
	if _, _, loaded := sess.store.Snapshot(); !loaded {
		return nil, err
	}
	return m.render(sess, appErrors.FromError(err)), nil
}

func (m *SessionManager) render(sess *Session, loadErr *appErrors.Error) *dto.ScheduleView {
	sess.mu.Lock()
	mode := sess.navigator.Mode()
	anchor := sess.navigator.Anchor()
	rng := sess.navigator.Range()
	weekAvailable := sess.navigator.WeekAvailable()
	sess.mu.Unlock()

	loadedRange, appts, loaded := sess.store.Snapshot()
	gridRange := rng
	view := &dto.ScheduleView{
		Mode:          mode,
		Anchor:        anchor,
		Range:         rng,
		WeekAvailable: weekAvailable,
		Slots:         m.Slots(),
		LoadError:     loadErr,
	}
	if loaded && loadedRange != rng {
		lr := loadedRange
		view.LoadedRange = &lr
		gridRange = loadedRange
	}

	grid := scheduling.BuildGrid(appts, gridRange, m.slots)
	view.Days = make([]dto.DayView, 0, len(grid.Days))
	for _, day := range grid.Days {
		dv := dto.DayView{Date: day.Date, Cells: make([]dto.CellView, 0, len(day.Cells))}
		for _, cell := range day.Cells {
			dv.Cells = append(dv.Cells, dto.CellView{Slot: cell.Slot, Appointments: nonNil(cell.Appointments)})
		}
		view.Days = append(view.Days, dv)
	}
	view.Unplaced = grid.Unplaced
	view.Total = grid.Count() + len(grid.Unplaced)
	if staged, ok := sess.workflow.Staged(); ok {
		view.Staged = &staged
	}
	return view
}

// session returns the actor's session, creating it on first use.
func (m *SessionManager) session(ctx context.Context, actor models.Actor) *Session {
	m.mu.Lock()
	sess, ok := m.sessions[actor.UserID]
	if ok {
		m.mu.Unlock()
		sess.touch(m.cfg.Now())
		return sess
	}

	sess = m.newSession(actor)
	m.sessions[actor.UserID] = sess
	m.mu.Unlock()
	m.metrics.SessionOpened()

	if m.viewStates != nil {
		state, err := m.viewStates.Get(ctx, actor.UserID)
		switch {
		case err == nil:
			sess.mu.Lock()
			sess.navigator.Restore(state)
			sess.mu.Unlock()
		case !errors.Is(err, appErrors.ErrCacheMiss):
			m.logger.Warn("view state restore failed", zap.String("user_id", actor.UserID), zap.Error(err))
		}
	}
	return sess
}

func (m *SessionManager) newSession(actor models.Actor) *Session {
	logger := m.logger.With(zap.String("user_id", actor.UserID))
	store := scheduling.NewRangeStore(m.gateway,
		scheduling.WithStoreLogger(logger),
		scheduling.WithStaleHook(func(models.CalendarRange) { m.metrics.RecordStaleDiscard() }),
	)
	workflow := scheduling.NewWorkflow(m.gateway, store, logger)
	workflow.OnChange(m.onChange)

	return &Session{
		userID: actor.UserID,
		navigator: scheduling.NewNavigator(m.cfg.DefaultView,
			scheduling.WithClock(m.cfg.Now),
			scheduling.WithLocation(m.cfg.Location),
			scheduling.WithWeekViewMinWidth(m.cfg.WeekViewMinWidth),
		),
		store:    store,
		workflow: workflow,
		lastSeen: m.cfg.Now(),
	}
}

func (m *SessionManager) onChange(ctx context.Context, before, after models.Appointment) {
	actor, _ := actorFromContext(ctx)
	statusChanged := before.Status != after.Status && after.Status != ""
	action := models.AuditActionNotesUpdate
	if statusChanged {
		action = models.AuditActionStatusChange
	}
	if m.recorder != nil {
		m.recorder.RecordChange(actor, action, before, after)
	}
	if !statusChanged || m.publisher == nil {
		return
	}
	evt := events.StatusChanged{
		AppointmentID: after.ID,
		From:          before.Status,
		To:            after.Status,
		Date:          after.Date,
		StartTime:     after.StartTime,
		ChangedBy:     actor.UserID,
	}
	if err := m.publisher.PublishStatusChanged(ctx, evt); err != nil {
		m.logger.Warn("status event not published", zap.Int64("appointment_id", after.ID), zap.Error(err))
	}
}

func (m *SessionManager) saveState(ctx context.Context, userID string, state scheduling.NavigatorState) {
	if m.viewStates == nil {
		return
	}
	if err := m.viewStates.Save(ctx, userID, state); err != nil {
		m.logger.Warn("view state save failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (m *SessionManager) recordConfirmation(outcome string) {
	m.metrics.RecordConfirmation(outcome)
}

// scope attaches the actor and its forwarded token to ctx.
func (m *SessionManager) scope(ctx context.Context, actor models.Actor) context.Context {
	ctx = withActor(ctx, actor)
	if actor.Token != "" {
		ctx = gateway.WithToken(ctx, actor.Token)
	}
	return ctx
}

func (s *Session) currentRange() models.CalendarRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigator.Range()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func findLoaded(sess *Session, appointmentID int64) (models.Appointment, error) {
	appt, ok := sess.store.Find(appointmentID)
	if !ok {
		return models.Appointment{}, appErrors.Clone(appErrors.ErrNotFound,
			fmt.Sprintf("appointment %d is not in the loaded range", appointmentID))
	}
	return appt, nil
}

func canWriteNotes(role models.UserRole) bool {
	return role == models.RolePsychologist || role == models.RoleAdmin
}

func nonNil(appts []models.Appointment) []models.Appointment {
	if appts == nil {
		return []models.Appointment{}
	}
	return appts
}

type actorKey struct{}

func withActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(models.Actor)
	return actor, ok
}
