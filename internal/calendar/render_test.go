package calendar

import (
	"testing"
	"time"

	"meetcal/internal/model"
)

func TestRenderWeekSpillingIntoNextMonth(t *testing.T) {
	l := Layout{
		Anchor:     NewDate(2024, time.February, 28),
		Mode:       ViewWeek,
		WeekStart:  time.Monday,
		Today:      NewDate(2024, time.February, 28),
		MaxVisible: 1,
		Location:   time.UTC,
	}
	at := func(d, h int) time.Time { return time.Date(2024, time.March, d, h, 0, 0, 0, time.UTC) }
	meetings := []model.Meeting{
		meetingAt("a", at(1, 9)),
		meetingAt("b", at(1, 11)),
		meetingAt("c", at(1, 15)),
	}

	got := Render(meetings, l)
	if len(got) != 7 {
		t.Fatalf("expected 7 days, got %d", len(got))
	}
	if got[0].Day.Date != NewDate(2024, time.February, 26) {
		t.Fatalf("unexpected first day: %s", got[0].Day.Date)
	}

	for _, b := range got {
		wantToday := b.Day.Date == l.Today
		if b.Day.IsToday != wantToday {
			t.Fatalf("%s: IsToday = %v", b.Day.Date, b.Day.IsToday)
		}
		wantCurrent := b.Day.Date.Month == time.February
		if b.Day.IsInCurrentPeriod != wantCurrent {
			t.Fatalf("%s: IsInCurrentPeriod = %v", b.Day.Date, b.Day.IsInCurrentPeriod)
		}
		if b.VisibleMeetings == nil {
			t.Fatalf("%s: visible meetings is nil", b.Day.Date)
		}
	}

	march1 := got[4]
	if march1.Day.Date != NewDate(2024, time.March, 1) {
		t.Fatalf("unexpected day at index 4: %s", march1.Day.Date)
	}
	if len(march1.VisibleMeetings) != 1 || march1.VisibleMeetings[0].ID != "a" {
		t.Fatalf("unexpected visible meetings: %+v", march1.VisibleMeetings)
	}
	if march1.OverflowCount != 2 || march1.FirstOverflow == nil || march1.FirstOverflow.ID != "b" {
		t.Fatalf("unexpected overflow: count=%d first=%+v", march1.OverflowCount, march1.FirstOverflow)
	}
}

func TestRenderMonthAllInPeriod(t *testing.T) {
	l := Layout{Anchor: NewDate(2024, time.April, 10), Mode: ViewMonth, MaxVisible: DefaultMaxVisible, Location: time.UTC}
	got := Render(nil, l)
	if len(got) != 30 {
		t.Fatalf("expected 30 days, got %d", len(got))
	}
	for _, b := range got {
		if !b.Day.IsInCurrentPeriod {
			t.Fatalf("%s: expected in current period", b.Day.Date)
		}
		if b.Day.IsToday {
			t.Fatalf("%s: unexpected today flag", b.Day.Date)
		}
	}
}
