// Package selection tracks which single meeting has a detail, cancel or
// reschedule flow open and turns user actions into intents for the UI.
//
// At most one flow is open at a time. Selecting another meeting implicitly
// closes the current flow first, which is what keeps lifecycle transitions
// from overlapping.
package selection

import (
	"errors"
	"fmt"
	"time"

	"meetcal/internal/lifecycle"
	"meetcal/internal/model"
)

var (
	// ErrNoActiveFlow is returned when a confirm step runs with nothing selected.
	ErrNoActiveFlow = errors.New("selection: no active flow")
	// ErrWrongStage is returned when a confirm step does not match the open flow.
	ErrWrongStage = errors.New("selection: action does not match the open flow")
)

// Stage is the step an open flow is at.
type Stage string

const (
	StageNone              Stage = ""
	StageDetails           Stage = "details"
	StageConfirmCancel     Stage = "confirm_cancel"
	StageConfirmReschedule Stage = "confirm_reschedule"
)

// IntentKind names a request the coordinator hands to the UI.
type IntentKind string

const (
	IntentOpenDetails       IntentKind = "open_details"
	IntentRequestCancel     IntentKind = "request_cancel"
	IntentRequestReschedule IntentKind = "request_reschedule"
	IntentJoinMeeting       IntentKind = "join_meeting"
	IntentClose             IntentKind = "close"
)

// Intent is emitted to the Sink. Link is only set for IntentJoinMeeting.
type Intent struct {
	Kind    IntentKind    `json:"kind"`
	Meeting model.Meeting `json:"meeting"`
	Link    string        `json:"link,omitempty"`
}

// Sink receives intents. Delivery is fire-and-forget.
type Sink interface {
	Emit(Intent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Intent)

// Emit calls f(in).
func (f SinkFunc) Emit(in Intent) { f(in) }

type discard struct{}

func (discard) Emit(Intent) {}

// Coordinator owns the single active selection.
type Coordinator struct {
	machine *lifecycle.Machine
	sink    Sink

	active *model.Meeting
	stage  Stage
}

// New returns a Coordinator delegating transitions to machine. A nil sink
// drops intents.
func New(machine *lifecycle.Machine, sink Sink) *Coordinator {
	if sink == nil {
		sink = discard{}
	}
	if machine == nil {
		machine = lifecycle.New()
	}
	return &Coordinator{machine: machine, sink: sink}
}

// Active returns the selected meeting and its stage.
func (c *Coordinator) Active() (model.Meeting, Stage, bool) {
	if c.active == nil {
		return model.Meeting{}, StageNone, false
	}
	return *c.active, c.stage, true
}

// Select opens the detail view for m, replacing any open flow.
func (c *Coordinator) Select(m model.Meeting) {
	c.open(m, StageDetails)
	c.sink.Emit(Intent{Kind: IntentOpenDetails, Meeting: m.Clone()})
}

// RequestCancel moves the flow for m to the cancel confirmation step. It
// fails early if m can no longer be canceled.
func (c *Coordinator) RequestCancel(m model.Meeting) error {
	if err := lifecycle.Check(m, lifecycle.TransitionCancel); err != nil {
		return err
	}
	c.open(m, StageConfirmCancel)
	c.sink.Emit(Intent{Kind: IntentRequestCancel, Meeting: m.Clone()})
	return nil
}

// RequestReschedule hands m to the external date/time picker. The picker
// reports back through ConfirmReschedule.
func (c *Coordinator) RequestReschedule(m model.Meeting) error {
	if err := lifecycle.Check(m, lifecycle.TransitionReschedule); err != nil {
		return err
	}
	c.open(m, StageConfirmReschedule)
	c.sink.Emit(Intent{Kind: IntentRequestReschedule, Meeting: m.Clone()})
	return nil
}

// ConfirmCancel cancels the meeting of an open cancel flow. The flow is
// cleared on success and stays open on failure so the reason can be fixed.
func (c *Coordinator) ConfirmCancel(reason string, by model.Party) (lifecycle.Result, error) {
	m, err := c.expect(StageConfirmCancel)
	if err != nil {
		return lifecycle.Result{}, err
	}
	res, err := c.machine.Cancel(m, reason, by)
	if err != nil {
		return lifecycle.Result{}, err
	}
	c.Clear()
	return res, nil
}

// ConfirmReschedule applies the time chosen in the picker.
func (c *Coordinator) ConfirmReschedule(newStartsAt time.Time) (lifecycle.Result, error) {
	m, err := c.expect(StageConfirmReschedule)
	if err != nil {
		return lifecycle.Result{}, err
	}
	res, err := c.machine.Reschedule(m, newStartsAt)
	if err != nil {
		return lifecycle.Result{}, err
	}
	c.Clear()
	return res, nil
}

// Complete marks the meeting shown in the detail view as held.
func (c *Coordinator) Complete() (lifecycle.Result, error) {
	m, err := c.expect(StageDetails)
	if err != nil {
		return lifecycle.Result{}, err
	}
	res, err := c.machine.Complete(m)
	if err != nil {
		return lifecycle.Result{}, err
	}
	c.Clear()
	return res, nil
}

// Join asks the UI to open m's meeting link. It does nothing for meetings
// without a link and does not touch the selection.
func (c *Coordinator) Join(m model.Meeting) bool {
	if !m.Remote() {
		return false
	}
	c.sink.Emit(Intent{Kind: IntentJoinMeeting, Meeting: m.Clone(), Link: m.MeetingLink})
	return true
}

// Clear closes any open flow.
func (c *Coordinator) Clear() {
	if c.active == nil {
		return
	}
	closed := *c.active
	c.active = nil
	c.stage = StageNone
	c.sink.Emit(Intent{Kind: IntentClose, Meeting: closed})
}

func (c *Coordinator) open(m model.Meeting, stage Stage) {
	if c.active != nil && c.active.ID != m.ID {
		c.Clear()
	}
	cp := m.Clone()
	c.active = &cp
	c.stage = stage
}

func (c *Coordinator) expect(stage Stage) (model.Meeting, error) {
	if c.active == nil {
		return model.Meeting{}, ErrNoActiveFlow
	}
	if c.stage != stage {
		return model.Meeting{}, fmt.Errorf("%w: open flow is %q, want %q", ErrWrongStage, c.stage, stage)
	}
	return *c.active, nil
}
