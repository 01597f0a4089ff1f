package calendar

import (
	"testing"
	"time"
)

func TestRangeWeekContainingAnchor(t *testing.T) {
	got := Range(NewDate(2024, time.February, 15), ViewWeek)
	if len(got) != 7 {
		t.Fatalf("expected 7 days, got %d", len(got))
	}
	if got[0] != NewDate(2024, time.February, 12) {
		t.Fatalf("unexpected first day: %s", got[0])
	}
	if got[6] != NewDate(2024, time.February, 18) {
		t.Fatalf("unexpected last day: %s", got[6])
	}
}

func TestRangeMonthLeapFebruary(t *testing.T) {
	got := Range(NewDate(2024, time.February, 15), ViewMonth)
	if len(got) != 29 {
		t.Fatalf("expected 29 days, got %d", len(got))
	}
	if got[0] != NewDate(2024, time.February, 1) {
		t.Fatalf("unexpected first day: %s", got[0])
	}
	if got[28] != NewDate(2024, time.February, 29) {
		t.Fatalf("unexpected last day: %s", got[28])
	}
}

func TestRangeWeekProperties(t *testing.T) {
	start := NewDate(2023, time.December, 1)
	for i := 0; i < 120; i++ {
		anchor := start.AddDays(i)
		got := Range(anchor, ViewWeek)
		if len(got) != 7 {
			t.Fatalf("%s: expected 7 days, got %d", anchor, len(got))
		}
		if got[0].Weekday() != time.Monday {
			t.Fatalf("%s: week starts on %s", anchor, got[0].Weekday())
		}
		found := false
		for j, d := range got {
			if d == anchor {
				found = true
			}
			if j > 0 && got[j-1].AddDays(1) != d {
				t.Fatalf("%s: days not consecutive at %d: %s then %s", anchor, j, got[j-1], d)
			}
		}
		if !found {
			t.Fatalf("%s: anchor missing from range %v", anchor, got)
		}
	}
}

func TestRangeWeekCrossesYear(t *testing.T) {
	got := Range(NewDate(2025, time.January, 1), ViewWeek)
	if got[0] != NewDate(2024, time.December, 30) {
		t.Fatalf("unexpected first day: %s", got[0])
	}
	if got[6] != NewDate(2025, time.January, 5) {
		t.Fatalf("unexpected last day: %s", got[6])
	}
}

func TestRangeWeekSundayStart(t *testing.T) {
	got := RangeFrom(NewDate(2024, time.February, 15), ViewWeek, time.Sunday)
	if got[0] != NewDate(2024, time.February, 11) {
		t.Fatalf("unexpected first day: %s", got[0])
	}
	// A Sunday anchor starts its own week.
	got = RangeFrom(NewDate(2024, time.February, 18), ViewWeek, time.Sunday)
	if got[0] != NewDate(2024, time.February, 18) {
		t.Fatalf("unexpected first day for Sunday anchor: %s", got[0])
	}
}

func TestRangeMonthLengths(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2023, time.February, 28},
		{2024, time.February, 29},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tt := range tests {
		anchor := NewDate(tt.year, tt.month, 10)
		got := Range(anchor, ViewMonth)
		if len(got) != tt.want {
			t.Fatalf("%d-%02d: expected %d days, got %d", tt.year, tt.month, tt.want, len(got))
		}
		for i, d := range got {
			if d.Day != i+1 || !d.SameMonth(anchor) {
				t.Fatalf("%d-%02d: unexpected day at %d: %s", tt.year, tt.month, i, d)
			}
		}
	}
}

func TestParseViewMode(t *testing.T) {
	for raw, want := range map[string]ViewMode{"": ViewWeek, "week": ViewWeek, " Month ": ViewMonth} {
		got, err := ParseViewMode(raw)
		if err != nil {
			t.Fatalf("ParseViewMode(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseViewMode(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := ParseViewMode("year"); err == nil {
		t.Fatalf("expected error for unknown view mode")
	}
}

func TestDateArithmetic(t *testing.T) {
	if got := NewDate(2024, time.February, 30); got != NewDate(2024, time.March, 1) {
		t.Fatalf("NewDate did not normalize: %s", got)
	}
	if got := NewDate(2024, time.January, 31).AddMonths(1); got != NewDate(2024, time.February, 29) {
		t.Fatalf("Jan 31 + 1 month = %s", got)
	}
	if got := NewDate(2023, time.January, 31).AddMonths(1); got != NewDate(2023, time.February, 28) {
		t.Fatalf("Jan 31 2023 + 1 month = %s", got)
	}
	if got := NewDate(2024, time.January, 15).AddMonths(-1); got != NewDate(2023, time.December, 15) {
		t.Fatalf("Jan 15 - 1 month = %s", got)
	}
	if !NewDate(2023, time.December, 31).Before(NewDate(2024, time.January, 1)) {
		t.Fatalf("expected Dec 31 before Jan 1")
	}

	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate returned error: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("unexpected round trip: %s", d)
	}
	if _, err := ParseDate("2023-02-29"); err == nil {
		t.Fatalf("expected error for non-existent date")
	}
}

func TestDateAddDaysAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	// Week containing the 2024 spring-forward transition.
	got := Range(NewDate(2024, time.March, 31), ViewWeek)
	for i := 1; i < len(got); i++ {
		if got[i-1].AddDays(1) != got[i] {
			t.Fatalf("gap at %d: %s then %s", i, got[i-1], got[i])
		}
	}
	if DateOf(got[6].In(loc)) != got[6] {
		t.Fatalf("midnight in %s moved the date", loc)
	}
}
