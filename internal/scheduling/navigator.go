package scheduling

import (
	"net/http"
	"time"

	"github.com/noah-isme/psy-schedule-api/internal/models"
	appErrors "github.com/noah-isme/psy-schedule-api/pkg/errors"
)

// DefaultWeekViewMinWidth is the narrowest viewport, in CSS pixels, that can show a week.
const DefaultWeekViewMinWidth = 768

// ErrWeekViewUnavailable is returned when week view is requested on a narrow viewport.
var ErrWeekViewUnavailable = appErrors.New("WEEK_VIEW_UNAVAILABLE", http.StatusUnprocessableEntity, "week view is unavailable at this viewport width")

// NavigatorOption configures a Navigator.
type NavigatorOption func(*Navigator)

// WithClock overrides the time source used by Today.
func WithClock(now func() time.Time) NavigatorOption {
	return func(n *Navigator) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLocation sets the zone that decides what "today" is.
func WithLocation(loc *time.Location) NavigatorOption {
	return func(n *Navigator) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithWeekViewMinWidth overrides the responsive threshold.
func WithWeekViewMinWidth(px int) NavigatorOption {
	return func(n *Navigator) {
		if px > 0 {
			n.minWeekWidth = px
		}
	}
}

// NavigatorState is the persisted part of a navigator.
type NavigatorState struct {
	Anchor models.Date     `json:"anchor"`
	Mode   models.ViewMode `json:"mode"`
}

// Navigator steps an anchor date through day and week views.
type Navigator struct {
	anchor       models.Date
	mode         models.ViewMode
	width        int
	minWeekWidth int
	now          func() time.Time
	loc          *time.Location
}

// NewNavigator starts on today in the given mode.
func NewNavigator(mode models.ViewMode, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		mode:         models.ViewWeek,
		minWeekWidth: DefaultWeekViewMinWidth,
		now:          time.Now,
		loc:          time.Local,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	if mode.Valid() {
		n.mode = mode
	}
	n.anchor = n.today()
	return n
}

// Anchor returns the anchor date.
func (n *Navigator) Anchor() models.Date {
	return n.anchor
}

// Mode returns the active view mode.
func (n *Navigator) Mode() models.ViewMode {
	return n.mode
}

// State returns the persistable state.
func (n *Navigator) State() NavigatorState {
	return NavigatorState{Anchor: n.anchor, Mode: n.mode}
}

// Restore applies a persisted state. Week mode is dropped when the viewport is narrow.
func (n *Navigator) Restore(state NavigatorState) {
	if !state.Anchor.IsZero() {
		n.anchor = state.Anchor
	}
	if state.Mode.Valid() {
		n.mode = state.Mode
	}
	if n.mode == models.ViewWeek && !n.WeekAvailable() {
		n.mode = models.ViewDay
	}
}

// Today moves the anchor to the current date, keeping the mode.
func (n *Navigator) Today() {
	n.anchor = n.today()
}

// GoTo moves the anchor to date, keeping the mode.
func (n *Navigator) GoTo(date models.Date) {
	if date.IsZero() {
		return
	}
	n.anchor = date
}

// Previous steps back one day or one week.
func (n *Navigator) Previous() {
	n.anchor = n.anchor.AddDays(-n.step())
}

// Next steps forward one day or one week.
func (n *Navigator) Next() {
	n.anchor = n.anchor.AddDays(n.step())
}

// SetViewMode changes the range shape. The anchor never moves.
func (n *Navigator) SetViewMode(mode models.ViewMode) error {
	if !mode.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "unknown view mode: "+string(mode))
	}
	if mode == models.ViewWeek && !n.WeekAvailable() {
		return ErrWeekViewUnavailable
	}
	n.mode = mode
	return nil
}

// SetViewportWidth records the viewport width and falls back to day view when a week
// no longer fits. It reports whether the mode changed. Zero means unknown and never
// restricts.
func (n *Navigator) SetViewportWidth(px int) bool {
	if px < 0 {
		px = 0
	}
	n.width = px
	if n.mode == models.ViewWeek && !n.WeekAvailable() {
		n.mode = models.ViewDay
		return true
	}
	return false
}

// WeekAvailable reports whether the current viewport can show a week.
func (n *Navigator) WeekAvailable() bool {
	return n.width == 0 || n.width >= n.minWeekWidth
}

// Range derives the displayed span from anchor and mode.
func (n *Navigator) Range() models.CalendarRange {
	if n.mode == models.ViewWeek {
		monday := MondayOnOrBefore(n.anchor)
		return models.CalendarRange{Start: monday, End: monday.AddDays(6)}
	}
	return models.CalendarRange{Start: n.anchor, End: n.anchor}
}

// MondayOnOrBefore returns the Monday starting d's week.
func MondayOnOrBefore(d models.Date) models.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func (n *Navigator) step() int {
	if n.mode == models.ViewWeek {
		return 7
	}
	return 1
}

func (n *Navigator) today() models.Date {
	return models.DateOf(n.now().In(n.loc))
}
