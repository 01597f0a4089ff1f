package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ViewMode selects how many days a view spans.
type ViewMode string

const (
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

// ErrUnknownViewMode is returned for modes other than week and month.
var ErrUnknownViewMode = errors.New("calendar: unknown view mode")

// Valid reports whether m is week or month.
func (m ViewMode) Valid() bool { return m == ViewWeek || m == ViewMonth }

// ParseViewMode converts a string to a ViewMode. Empty input yields ViewWeek.
func ParseViewMode(raw string) (ViewMode, error) {
	m := ViewMode(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case ViewWeek, ViewMonth:
		return m, nil
	case "":
		return ViewWeek, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownViewMode, raw)
}

// Range returns the ordered days displayed for anchor under mode, with weeks
// starting on Monday.
func Range(anchor Date, mode ViewMode) []Date {
	return RangeFrom(anchor, mode, time.Monday)
}

// RangeFrom is Range with a configurable first day of the week. Month views
// ignore weekStart.
//
//   - week:  7 days, from the weekStart on or before anchor
//   - month: day 1 through the last day of anchor's month
func RangeFrom(anchor Date, mode ViewMode, weekStart time.Weekday) []Date {
	if mode == ViewMonth {
		n := DaysIn(anchor.Year, anchor.Month)
		out := make([]Date, 0, n)
		for day := 1; day <= n; day++ {
			out = append(out, Date{Year: anchor.Year, Month: anchor.Month, Day: day})
		}
		return out
	}

	start := WeekStart(anchor, weekStart)
	out := make([]Date, 0, 7)
	for i := 0; i < 7; i++ {
		out = append(out, start.AddDays(i))
	}
	return out
}

// WeekStart returns the closest day on or before d that falls on weekStart.
func WeekStart(d Date, weekStart time.Weekday) Date {
	offset := (int(d.Weekday()) - int(weekStart) + 7) % 7
	return d.AddDays(-offset)
}
