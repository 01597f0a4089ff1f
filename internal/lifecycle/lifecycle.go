// Package lifecycle implements the meeting state machine.
//
//	scheduled   --complete-->   completed   (terminal)
//	scheduled   --reschedule--> rescheduled
//	scheduled   --cancel-->     canceled    (terminal)
//
// A rescheduled meeting accepts the same transitions as a scheduled one.
// Transitions never mutate their input; they return an updated copy together
// with the obligations the surrounding system has to fulfil.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"meetcal/internal/model"
)

// Transition names a lifecycle operation.
type Transition string

const (
	TransitionComplete   Transition = "complete"
	TransitionReschedule Transition = "reschedule"
	TransitionCancel     Transition = "cancel"
)

// ParseTransition converts a string to a Transition.
func ParseTransition(raw string) (Transition, error) {
	t := Transition(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case TransitionComplete, TransitionReschedule, TransitionCancel:
		return t, nil
	}
	return "", fmt.Errorf("lifecycle: unknown transition %q", raw)
}

// ObligationKind names a side effect a transition requires.
type ObligationKind string

const (
	// ObligationFollowUp opens note-taking and follow-up for a completed meeting.
	ObligationFollowUp ObligationKind = "follow_up"
	// ObligationNotifyParticipants tells participants about a new time.
	ObligationNotifyParticipants ObligationKind = "notify_participants"
	// ObligationRefundAndNotify covers refunds and notices after a cancellation.
	ObligationRefundAndNotify ObligationKind = "refund_and_notify"
)

// Obligation is a side effect the caller must carry out after persisting a
// transition. The machine never performs it.
type Obligation struct {
	ID           string         `json:"id"`
	Kind         ObligationKind `json:"kind"`
	MeetingID    string         `json:"meeting_id"`
	Participants []string       `json:"participants"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Result is the outcome of a successful transition.
type Result struct {
	Meeting     model.Meeting `json:"meeting"`
	Previous    model.Status  `json:"previous_status"`
	Transition  Transition    `json:"transition"`
	Obligations []Obligation  `json:"obligations"`
}

// Payload carries the data some transitions need.
type Payload struct {
	NewStartsAt time.Time   `json:"starts_at"`
	Reason      string      `json:"reason"`
	CanceledBy  model.Party `json:"canceled_by"`
}

// Authorizer decides whether party may cancel m. Cancellation is open to both
// parties when no Authorizer is configured.
type Authorizer func(m model.Meeting, party model.Party) bool

// Machine validates and applies transitions.
type Machine struct {
	now       func() time.Time
	authorize Authorizer
}

// Option customizes a Machine.
type Option func(*Machine)

// WithClock sets the clock used for "now" checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithAuthorizer installs a cancellation access check.
func WithAuthorizer(a Authorizer) Option {
	return func(m *Machine) { m.authorize = a }
}

// New returns a Machine using the wall clock unless WithClock is given.
func New(opts ...Option) *Machine {
	m := &Machine{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allowed reports whether t is legal for a meeting currently in s.
func Allowed(s model.Status, t Transition) bool {
	switch t {
	case TransitionComplete, TransitionReschedule, TransitionCancel:
		return s.Active()
	}
	return false
}

// Check returns a *TransitionError if t is not legal for m.
func Check(m model.Meeting, t Transition) error {
	if !Allowed(m.Status, t) {
		return &TransitionError{MeetingID: m.ID, From: m.Status, Transition: t}
	}
	return nil
}

// Complete marks an active meeting as held.
func (mc *Machine) Complete(m model.Meeting) (Result, error) {
	if err := Check(m, TransitionComplete); err != nil {
		return Result{}, err
	}
	now := mc.now()

	out := m.Clone()
	out.Status = model.StatusCompleted
	return mc.result(m, out, TransitionComplete, now, ObligationFollowUp), nil
}

// Reschedule moves an active meeting to newStartsAt, which must lie strictly
// after the time of the request.
func (mc *Machine) Reschedule(m model.Meeting, newStartsAt time.Time) (Result, error) {
	if err := Check(m, TransitionReschedule); err != nil {
		return Result{}, err
	}
	now := mc.now()
	if !newStartsAt.After(now) {
		return Result{}, fmt.Errorf("lifecycle: meeting %q to %s: %w", m.ID, newStartsAt.Format(time.RFC3339), ErrInvalidReschedule)
	}

	out := m.Clone()
	out.StartsAt = newStartsAt
	out.Status = model.StatusRescheduled
	return mc.result(m, out, TransitionReschedule, now, ObligationNotifyParticipants), nil
}

// Cancel cancels an active meeting. The state is irreversible.
func (mc *Machine) Cancel(m model.Meeting, reason string, by model.Party) (Result, error) {
	if err := Check(m, TransitionCancel); err != nil {
		return Result{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Result{}, fmt.Errorf("lifecycle: meeting %q: %w", m.ID, ErrEmptyCancellationReason)
	}
	if by != model.PartyOrganizer && by != model.PartyCounterpart {
		return Result{}, fmt.Errorf("lifecycle: meeting %q: %w %q", m.ID, ErrUnknownParty, by)
	}
	if mc.authorize != nil && !mc.authorize(m, by) {
		return Result{}, fmt.Errorf("lifecycle: meeting %q by %s: %w", m.ID, by, ErrNotAuthorized)
	}
	now := mc.now()

	out := m.Clone()
	out.Status = model.StatusCanceled
	out.Cancellation = &model.Cancellation{
		Reason:     reason,
		CanceledBy: by,
		CanceledAt: now,
	}
	return mc.result(m, out, TransitionCancel, now, ObligationRefundAndNotify), nil
}

// Apply dispatches t with its payload.
func (mc *Machine) Apply(m model.Meeting, t Transition, p Payload) (Result, error) {
	switch t {
	case TransitionComplete:
		return mc.Complete(m)
	case TransitionReschedule:
		return mc.Reschedule(m, p.NewStartsAt)
	case TransitionCancel:
		return mc.Cancel(m, p.Reason, p.CanceledBy)
	}
	return Result{}, &TransitionError{MeetingID: m.ID, From: m.Status, Transition: t}
}

func (mc *Machine) result(before, after model.Meeting, t Transition, now time.Time, kind ObligationKind) Result {
	return Result{
		Meeting:    after,
		Previous:   before.Status,
		Transition: t,
		Obligations: []Obligation{{
			ID:           uuid.New().String(),
			Kind:         kind,
			MeetingID:    after.ID,
			Participants: append([]string(nil), after.Participants...),
			CreatedAt:    now,
		}},
	}
}
