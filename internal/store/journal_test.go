package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"meetcal/internal/lifecycle"
	"meetcal/internal/model"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenJournal returned error: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalOverlay(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	now := time.Date(2024, time.February, 15, 8, 0, 0, 0, time.UTC)
	mc := lifecycle.New(lifecycle.WithClock(func() time.Time { return now }))

	feed := []model.Meeting{meeting("a", 9), meeting("b", 10)}

	first, err := mc.Reschedule(feed[0], now.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("Reschedule returned error: %v", err)
	}
	if err := j.Record(ctx, first); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	second, err := mc.Cancel(first.Meeting, "moved again", model.PartyOrganizer)
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if err := j.Record(ctx, second); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	got, err := j.Overlay(ctx, feed)
	if err != nil {
		t.Fatalf("Overlay returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 meetings, got %d", len(got))
	}
	if got[0].Status != model.StatusCanceled || got[0].Cancellation == nil || got[0].Cancellation.Reason != "moved again" {
		t.Fatalf("latest state not applied: %+v", got[0])
	}
	if !got[0].StartsAt.Equal(now.Add(48 * time.Hour)) {
		t.Fatalf("rescheduled time lost: %s", got[0].StartsAt)
	}
	if got[1].Status != model.StatusScheduled {
		t.Fatalf("untouched meeting changed: %s", got[1].Status)
	}
	if feed[0].Status != model.StatusScheduled {
		t.Fatalf("input slice modified")
	}

	// Meetings dropped from the feed stay dropped.
	got, err = j.Overlay(ctx, feed[1:])
	if err != nil || len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected overlay of reduced feed: %+v %v", got, err)
	}
}

func TestJournalObligations(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	mc := lifecycle.New()

	res, err := mc.Complete(meeting("a", 9))
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if err := j.Record(ctx, res); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	pending, err := j.PendingObligations(ctx)
	if err != nil {
		t.Fatalf("PendingObligations returned error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != res.Obligations[0].ID || pending[0].Kind != lifecycle.ObligationFollowUp {
		t.Fatalf("unexpected pending obligations: %+v", pending)
	}
	if len(pending[0].Participants) != 1 || pending[0].Participants[0] != "alice" {
		t.Fatalf("participants lost: %v", pending[0].Participants)
	}

	if err := j.MarkDone(ctx, pending[0].ID); err != nil {
		t.Fatalf("MarkDone returned error: %v", err)
	}
	if err := j.MarkDone(ctx, pending[0].ID); !errors.Is(err, ErrObligationNotFound) {
		t.Fatalf("expected ErrObligationNotFound, got %v", err)
	}
	pending, _ = j.PendingObligations(ctx)
	if len(pending) != 0 {
		t.Fatalf("expected no pending obligations, got %d", len(pending))
	}
}

func TestJournalReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal returned error: %v", err)
	}
	res, _ := lifecycle.New().Complete(meeting("a", 9))
	if err := j.Record(ctx, res); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	_ = j.Close()

	j, err = OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer j.Close()
	got, err := j.Overlay(ctx, []model.Meeting{meeting("a", 9)})
	if err != nil || got[0].Status != model.StatusCompleted {
		t.Fatalf("state lost across reopen: %+v %v", got, err)
	}
}

func TestJournalPendingOldestFirstWithSubSecondStamps(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	// Recorded newest first, with IDs that sort opposite to time.
	stamps := []struct {
		id string
		at time.Time
	}{
		{"a-newest", base.Add(550 * time.Millisecond)},
		{"b-middle", base.Add(500 * time.Millisecond)},
		{"c-oldest", base},
	}
	for _, s := range stamps {
		res := lifecycle.Result{
			Meeting:    meeting(s.id, 9),
			Previous:   model.StatusScheduled,
			Transition: lifecycle.TransitionComplete,
			Obligations: []lifecycle.Obligation{{
				ID:           s.id,
				Kind:         lifecycle.ObligationFollowUp,
				MeetingID:    s.id,
				Participants: []string{"alice"},
				CreatedAt:    s.at,
			}},
		}
		res.Meeting.Status = model.StatusCompleted
		if err := j.Record(ctx, res); err != nil {
			t.Fatalf("Record(%s) returned error: %v", s.id, err)
		}
	}

	pending, err := j.PendingObligations(ctx)
	if err != nil {
		t.Fatalf("PendingObligations returned error: %v", err)
	}
	want := []string{"c-oldest", "b-middle", "a-newest"}
	if len(pending) != len(want) {
		t.Fatalf("expected %d obligations, got %d", len(want), len(pending))
	}
	for i, id := range want {
		if pending[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, pending[i].ID, id)
		}
	}
	if !pending[1].CreatedAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Fatalf("sub-second stamp lost: %s", pending[1].CreatedAt)
	}
}
