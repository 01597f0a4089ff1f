package lifecycle

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"meetcal/internal/model"
)

var testNow = time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC)

func newMachine(opts ...Option) *Machine {
	return New(append([]Option{WithClock(func() time.Time { return testNow })}, opts...)...)
}

func scheduled() model.Meeting {
	return model.Meeting{
		ID:              "m-1",
		Title:           "Interview",
		StartsAt:        testNow.Add(24 * time.Hour),
		DurationMinutes: 60,
		Kind:            model.KindInterview,
		Participants:    []string{"alice", "bob"},
		Status:          model.StatusScheduled,
	}
}

func TestCancelRejectsEmptyReason(t *testing.T) {
	m := scheduled()
	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := newMachine().Cancel(m, reason, model.PartyOrganizer)
		if !errors.Is(err, ErrEmptyCancellationReason) {
			t.Fatalf("reason %q: expected ErrEmptyCancellationReason, got %v", reason, err)
		}
	}
	if m.Status != model.StatusScheduled || m.Cancellation != nil {
		t.Fatalf("input meeting mutated: %+v", m)
	}
}

func TestRescheduleRejectsPast(t *testing.T) {
	m := scheduled()
	for _, at := range []time.Time{testNow.Add(-time.Hour), testNow} {
		_, err := newMachine().Reschedule(m, at)
		if !errors.Is(err, ErrInvalidReschedule) {
			t.Fatalf("reschedule to %s: expected ErrInvalidReschedule, got %v", at, err)
		}
	}
	if m.Status != model.StatusScheduled {
		t.Fatalf("input meeting mutated: %s", m.Status)
	}
}

func TestCancel(t *testing.T) {
	m := scheduled()
	res, err := newMachine().Cancel(m, "  candidate withdrew ", model.PartyCounterpart)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if res.Meeting.Status != model.StatusCanceled || res.Previous != model.StatusScheduled {
		t.Fatalf("unexpected status change %s -> %s", res.Previous, res.Meeting.Status)
	}
	c := res.Meeting.Cancellation
	if c == nil {
		t.Fatalf("expected cancellation record")
	}
	if c.Reason != "candidate withdrew" || c.CanceledBy != model.PartyCounterpart || !c.CanceledAt.Equal(testNow) {
		t.Fatalf("unexpected cancellation record: %+v", c)
	}
	if err := res.Meeting.Validate(); err != nil {
		t.Fatalf("result meeting invalid: %v", err)
	}
	if m.Cancellation != nil || m.Status != model.StatusScheduled {
		t.Fatalf("input meeting mutated: %+v", m)
	}
	assertObligation(t, res, ObligationRefundAndNotify)
}

func TestReschedule(t *testing.T) {
	m := scheduled()
	next := testNow.Add(72 * time.Hour)
	res, err := newMachine().Reschedule(m, next)
	if err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}
	if res.Meeting.Status != model.StatusRescheduled || !res.Meeting.StartsAt.Equal(next) {
		t.Fatalf("unexpected result: %s at %s", res.Meeting.Status, res.Meeting.StartsAt)
	}
	if !m.StartsAt.Equal(testNow.Add(24 * time.Hour)) {
		t.Fatalf("input meeting mutated")
	}
	assertObligation(t, res, ObligationNotifyParticipants)

	// A rescheduled meeting stays active.
	again, err := newMachine().Reschedule(res.Meeting, next.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Reschedule returned error: %v", err)
	}
	if again.Previous != model.StatusRescheduled {
		t.Fatalf("unexpected previous status: %s", again.Previous)
	}
}

func TestComplete(t *testing.T) {
	res, err := newMachine().Complete(scheduled())
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if res.Meeting.Status != model.StatusCompleted {
		t.Fatalf("unexpected status: %s", res.Meeting.Status)
	}
	assertObligation(t, res, ObligationFollowUp)
}

func TestTransitionMatrix(t *testing.T) {
	statuses := []model.Status{model.StatusScheduled, model.StatusRescheduled, model.StatusCompleted, model.StatusCanceled}
	transitions := []Transition{TransitionComplete, TransitionReschedule, TransitionCancel}
	payload := Payload{NewStartsAt: testNow.Add(time.Hour), Reason: "conflict", CanceledBy: model.PartyOrganizer}

	for _, s := range statuses {
		for _, tr := range transitions {
			t.Run(string(s)+"/"+string(tr), func(t *testing.T) {
				m := scheduled()
				m.Status = s
				if s == model.StatusCanceled {
					m.Cancellation = &model.Cancellation{Reason: "earlier", CanceledBy: model.PartyOrganizer}
				}

				_, err := newMachine().Apply(m, tr, payload)
				if s.Active() {
					if err != nil {
						t.Fatalf("expected success, got %v", err)
					}
					return
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("expected ErrInvalidTransition, got %v", err)
				}
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("expected *TransitionError, got %T", err)
				}
				if te.From != s || te.Transition != tr || te.MeetingID != "m-1" {
					t.Fatalf("unexpected error fields: %+v", te)
				}
			})
		}
	}
}

func TestTerminalCheckedBeforePayload(t *testing.T) {
	m := scheduled()
	m.Status = model.StatusCompleted
	// An empty reason would also fail; the state error wins.
	_, err := newMachine().Cancel(m, "", model.PartyOrganizer)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelUnknownParty(t *testing.T) {
	_, err := newMachine().Cancel(scheduled(), "reason", model.Party("admin"))
	if !errors.Is(err, ErrUnknownParty) {
		t.Fatalf("expected ErrUnknownParty, got %v", err)
	}
}

func TestCancelAuthorizer(t *testing.T) {
	onlyOrganizer := func(_ model.Meeting, p model.Party) bool { return p == model.PartyOrganizer }
	mc := newMachine(WithAuthorizer(onlyOrganizer))

	if _, err := mc.Cancel(scheduled(), "reason", model.PartyCounterpart); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := mc.Cancel(scheduled(), "reason", model.PartyOrganizer); err != nil {
		t.Fatalf("organizer cancel failed: %v", err)
	}
}

func TestApplyUnknownTransition(t *testing.T) {
	_, err := newMachine().Apply(scheduled(), Transition("archive"), Payload{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if Allowed(model.StatusScheduled, Transition("archive")) {
		t.Fatalf("unknown transition allowed")
	}
}

func TestObligationIDsUnique(t *testing.T) {
	mc := newMachine()
	a, _ := mc.Complete(scheduled())
	b, _ := mc.Complete(scheduled())
	if a.Obligations[0].ID == b.Obligations[0].ID {
		t.Fatalf("obligation IDs collide: %s", a.Obligations[0].ID)
	}
}

func assertObligation(t *testing.T, res Result, kind ObligationKind) {
	t.Helper()
	if len(res.Obligations) != 1 {
		t.Fatalf("expected one obligation, got %d", len(res.Obligations))
	}
	ob := res.Obligations[0]
	if ob.Kind != kind || ob.MeetingID != res.Meeting.ID || ob.ID == "" {
		t.Fatalf("unexpected obligation: %+v", ob)
	}
	if !reflect.DeepEqual(ob.Participants, res.Meeting.Participants) {
		t.Fatalf("obligation participants %v, want %v", ob.Participants, res.Meeting.Participants)
	}
	if !ob.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected obligation time: %s", ob.CreatedAt)
	}
}
