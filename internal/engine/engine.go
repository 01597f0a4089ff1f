// Package engine is the in-process boundary of the scheduling display core.
// It ties navigation, layout, selection and the lifecycle machine together
// behind the commands a UI sends: navigate, set view mode, render a snapshot
// and apply a transition.
//
// An Engine is driven from a single control thread and is not safe for
// concurrent use; the HTTP shell serializes access itself.
package engine

import (
	"errors"
	"fmt"
	"time"

	"meetcal/internal/calendar"
	"meetcal/internal/lifecycle"
	appLog "meetcal/internal/log"
	"meetcal/internal/model"
	"meetcal/internal/selection"
)

// ErrMeetingNotFound is returned when a transition names an unknown meeting.
var ErrMeetingNotFound = errors.New("engine: meeting not found")

// Options configures an Engine.
type Options struct {
	Mode   calendar.ViewMode
	Anchor calendar.Date // zero means today

	// SundayFirst starts week views on Sunday instead of Monday.
	SundayFirst bool
	MaxVisible  int
	Location    *time.Location
	Now         func() time.Time
	Sink        selection.Sink
	Authorizer  lifecycle.Authorizer
}

// View is the output of one render cycle.
type View struct {
	Anchor  calendar.Date            `json:"anchor"`
	Mode    calendar.ViewMode        `json:"mode"`
	Today   calendar.Date            `json:"today"`
	Days    []calendar.DisplayBucket `json:"days"`
	Omitted int                      `json:"omitted"`
}

// Engine owns the navigation and selection state of one calendar view.
type Engine struct {
	nav        *calendar.Navigator
	machine    *lifecycle.Machine
	sel        *selection.Coordinator
	maxVisible int
	loc        *time.Location
}

// New builds an Engine.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxVisible < 0 {
		opts.MaxVisible = 0
	}

	weekStart := time.Monday
	if opts.SundayFirst {
		weekStart = time.Sunday
	}
	navOpts := []calendar.NavigatorOption{
		calendar.WithClock(opts.Now),
		calendar.WithLocation(opts.Location),
		calendar.WithWeekStart(weekStart),
	}
	if !opts.Anchor.IsZero() {
		navOpts = append(navOpts, calendar.WithAnchor(opts.Anchor))
	}

	machineOpts := []lifecycle.Option{lifecycle.WithClock(opts.Now)}
	if opts.Authorizer != nil {
		machineOpts = append(machineOpts, lifecycle.WithAuthorizer(opts.Authorizer))
	}
	machine := lifecycle.New(machineOpts...)

	return &Engine{
		nav:        calendar.NewNavigator(opts.Mode, navOpts...),
		machine:    machine,
		sel:        selection.New(machine, opts.Sink),
		maxVisible: opts.MaxVisible,
		loc:        opts.Location,
	}
}

// Navigator exposes the navigation state.
func (e *Engine) Navigator() *calendar.Navigator { return e.nav }

// Selection exposes the selection coordinator.
func (e *Engine) Selection() *selection.Coordinator { return e.sel }

// Machine exposes the lifecycle machine.
func (e *Engine) Machine() *lifecycle.Machine { return e.machine }

// Navigate moves the anchor.
func (e *Engine) Navigate(dir calendar.Direction) error {
	_, err := e.nav.Navigate(dir)
	return err
}

// SetViewMode switches between week and month without moving the anchor.
func (e *Engine) SetViewMode(mode calendar.ViewMode) error {
	_, err := e.nav.SetViewMode(mode)
	return err
}

// Layout returns the parameters of the next render.
func (e *Engine) Layout() calendar.Layout {
	return calendar.Layout{
		Anchor:     e.nav.Anchor(),
		Mode:       e.nav.Mode(),
		WeekStart:  e.nav.WeekStart(),
		Today:      e.nav.Today(),
		MaxVisible: e.maxVisible,
		Location:   e.loc,
	}
}

// Render lays a meeting snapshot out over the current range.
func (e *Engine) Render(snapshot []model.Meeting) View {
	return RenderLayout(snapshot, e.Layout())
}

// RenderLayout renders snapshot for an explicit layout.
func RenderLayout(snapshot []model.Meeting, l calendar.Layout) View {
	days := calendar.Render(snapshot, l)

	placed := 0
	for _, d := range days {
		placed += len(d.VisibleMeetings) + d.OverflowCount
	}
	return View{
		Anchor:  l.Anchor,
		Mode:    l.Mode,
		Today:   l.Today,
		Days:    days,
		Omitted: len(snapshot) - placed,
	}
}

// ApplyTransition finds meetingID in snapshot and applies t. The snapshot is
// not modified; the caller persists Result.Meeting and carries out the
// obligations. Any open selection flow for the meeting is closed on success.
func (e *Engine) ApplyTransition(snapshot []model.Meeting, meetingID string, t lifecycle.Transition, p lifecycle.Payload) (lifecycle.Result, error) {
	m, ok := find(snapshot, meetingID)
	if !ok {
		return lifecycle.Result{}, fmt.Errorf("%w: %q", ErrMeetingNotFound, meetingID)
	}

	res, err := e.machine.Apply(m, t, p)
	if err != nil {
		appLog.Debug("transition rejected", "meeting_id", meetingID, "transition", string(t), "reason", err.Error())
		return lifecycle.Result{}, err
	}

	if active, _, open := e.sel.Active(); open && active.ID == meetingID {
		e.sel.Clear()
	}
	appLog.Info("transition applied",
		"meeting_id", meetingID,
		"transition", string(t),
		"from", string(res.Previous),
		"to", string(res.Meeting.Status),
		"obligations", len(res.Obligations),
	)
	return res, nil
}

func find(snapshot []model.Meeting, id string) (model.Meeting, bool) {
	for _, m := range snapshot {
		if m.ID == id {
			return m, true
		}
	}
	return model.Meeting{}, false
}
