package calendar

import (
	"time"

	"meetcal/internal/model"
)

// Day is a displayed calendar day. Days are rebuilt on every render and never
// mutated afterwards.
type Day struct {
	Date Date `json:"date"`
	// IsToday marks the current date.
	IsToday bool `json:"is_today"`
	// IsInCurrentPeriod is false for days of a week view that spill into the
	// month next to the anchor's month.
	IsInCurrentPeriod bool `json:"is_in_current_period"`
}

// DisplayBucket is one rendered day: the meetings shown inline plus how many
// were collapsed.
type DisplayBucket struct {
	Day             Day             `json:"day"`
	VisibleMeetings []model.Meeting `json:"visible_meetings"`
	OverflowCount   int             `json:"overflow_count"`
	// FirstOverflow is advisory; it names the meeting an "N more" control
	// should open first.
	FirstOverflow *model.Meeting `json:"first_overflow,omitempty"`
}

// Layout holds the parameters of one render pass.
type Layout struct {
	Anchor     Date
	Mode       ViewMode
	WeekStart  time.Weekday
	Today      Date
	MaxVisible int
	Location   *time.Location
}

// Days derives the CalendarDay entries for the layout's range.
func (l Layout) Days() []Day {
	dates := RangeFrom(l.Anchor, l.Mode, l.WeekStart)
	out := make([]Day, 0, len(dates))
	for _, d := range dates {
		out = append(out, Day{
			Date:              d,
			IsToday:           d == l.Today,
			IsInCurrentPeriod: d.SameMonth(l.Anchor),
		})
	}
	return out
}

// Render runs range, bucketing and overflow selection over a meeting snapshot
// and returns one DisplayBucket per displayed day, in date order.
func Render(meetings []model.Meeting, l Layout) []DisplayBucket {
	days := l.Days()
	dates := make([]Date, 0, len(days))
	for _, d := range days {
		dates = append(dates, d.Date)
	}

	buckets := Bucket(meetings, dates, l.Location)
	out := make([]DisplayBucket, 0, len(days))
	for _, day := range days {
		sel := Select(buckets[day.Date], l.MaxVisible)
		visible := sel.Visible
		if visible == nil {
			visible = []model.Meeting{}
		}
		out = append(out, DisplayBucket{
			Day:             day,
			VisibleMeetings: visible,
			OverflowCount:   sel.Count,
			FirstOverflow:   sel.FirstHidden,
		})
	}
	return out
}
