package calendar

import (
	"testing"
	"time"

	"meetcal/internal/model"
)

func meetingAt(id string, t time.Time) model.Meeting {
	return model.Meeting{
		ID:              id,
		Title:           "Meeting " + id,
		StartsAt:        t,
		DurationMinutes: 30,
		Kind:            model.KindInterview,
		Status:          model.StatusScheduled,
	}
}

func TestBucketGroupsAndSorts(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2024, time.February, d, h, 0, 0, 0, time.UTC) }
	meetings := []model.Meeting{
		meetingAt("late", day(13, 18)),
		meetingAt("early", day(13, 9)),
		meetingAt("other", day(14, 10)),
		meetingAt("outside", day(25, 10)),
	}
	dates := Range(NewDate(2024, time.February, 15), ViewWeek)

	got := Bucket(meetings, dates, time.UTC)
	if len(got) != 7 {
		t.Fatalf("expected a bucket per date, got %d", len(got))
	}
	for _, d := range dates {
		if got[d] == nil {
			t.Fatalf("bucket for %s is nil", d)
		}
	}

	tue := got[NewDate(2024, time.February, 13)]
	if len(tue) != 2 || tue[0].ID != "early" || tue[1].ID != "late" {
		t.Fatalf("unexpected Tuesday bucket: %+v", tue)
	}
	if len(got[NewDate(2024, time.February, 14)]) != 1 {
		t.Fatalf("expected one meeting on Wednesday")
	}

	total := 0
	for _, b := range got {
		total += len(b)
	}
	if total != 3 {
		t.Fatalf("expected 3 placed meetings, got %d", total)
	}
}

func TestBucketStableForEqualStart(t *testing.T) {
	at := time.Date(2024, time.February, 13, 9, 0, 0, 0, time.UTC)
	meetings := []model.Meeting{meetingAt("b", at), meetingAt("a", at), meetingAt("c", at)}
	dates := []Date{NewDate(2024, time.February, 13)}

	got := Bucket(meetings, dates, time.UTC)[dates[0]]
	if got[0].ID != "b" || got[1].ID != "a" || got[2].ID != "c" {
		t.Fatalf("input order not preserved: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestBucketUsesDisplayLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 20:00 UTC on the 13th is 05:00 on the 14th in Tokyo.
	m := meetingAt("m", time.Date(2024, time.February, 13, 20, 0, 0, 0, time.UTC))
	dates := Range(NewDate(2024, time.February, 15), ViewWeek)

	got := Bucket([]model.Meeting{m}, dates, tokyo)
	if len(got[NewDate(2024, time.February, 14)]) != 1 {
		t.Fatalf("expected meeting on the 14th in JST")
	}
	if len(got[NewDate(2024, time.February, 13)]) != 0 {
		t.Fatalf("expected no meeting on the 13th in JST")
	}
}

func TestBucketEmptyInput(t *testing.T) {
	dates := Range(NewDate(2024, time.February, 15), ViewMonth)
	got := Bucket(nil, dates, nil)
	if len(got) != 29 {
		t.Fatalf("expected 29 empty buckets, got %d", len(got))
	}
	for d, b := range got {
		if len(b) != 0 {
			t.Fatalf("bucket %s not empty", d)
		}
	}
}
