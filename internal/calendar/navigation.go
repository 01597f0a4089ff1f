package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Direction is a navigation command.
type Direction string

const (
	DirPrevious Direction = "previous"
	DirNext     Direction = "next"
	DirToday    Direction = "today"
)

// ParseDirection accepts previous/prev, next and today.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "previous", "prev":
		return DirPrevious, nil
	case "next":
		return DirNext, nil
	case "today":
		return DirToday, nil
	}
	return "", fmt.Errorf("calendar: unknown direction %q", raw)
}

// Navigator holds the anchor date and view mode of a calendar view. It is
// not safe for concurrent use.
type Navigator struct {
	anchor    Date
	mode      ViewMode
	weekStart time.Weekday

	now func() time.Time
	loc *time.Location
}

// NavigatorOption customizes a Navigator.
type NavigatorOption func(*Navigator)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) NavigatorOption {
	return func(n *Navigator) { n.now = now }
}

// WithLocation sets the location "today" is computed in.
func WithLocation(loc *time.Location) NavigatorOption {
	return func(n *Navigator) { n.loc = loc }
}

// WithWeekStart sets the first day of week views.
func WithWeekStart(d time.Weekday) NavigatorOption {
	return func(n *Navigator) { n.weekStart = d }
}

// WithAnchor starts the navigator on a specific date instead of today.
func WithAnchor(d Date) NavigatorOption {
	return func(n *Navigator) { n.anchor = d }
}

// NewNavigator returns a navigator in mode, anchored on today unless
// WithAnchor is given. An empty or unknown mode starts as week.
func NewNavigator(mode ViewMode, opts ...NavigatorOption) *Navigator {
	n := &Navigator{
		mode:      mode,
		weekStart: time.Monday,
		now:       time.Now,
		loc:       time.Local,
	}
	for _, opt := range opts {
		opt(n)
	}
	if !n.mode.Valid() {
		n.mode = ViewWeek
	}
	if n.anchor.IsZero() {
		n.anchor = n.Today()
	}
	return n
}

// Anchor is the date the view is currently centered on.
func (n *Navigator) Anchor() Date { return n.anchor }

// Mode is the current view mode.
func (n *Navigator) Mode() ViewMode { return n.mode }

// WeekStart is the first day of week views.
func (n *Navigator) WeekStart() time.Weekday { return n.weekStart }

// Today is the current date in the navigator's location.
func (n *Navigator) Today() Date {
	return DateOf(n.now().In(n.loc))
}

// Previous moves back one week or one month and returns the new range.
func (n *Navigator) Previous() []Date {
	n.anchor = n.step(-1)
	return n.Range()
}

// Next moves forward one week or one month and returns the new range.
func (n *Navigator) Next() []Date {
	n.anchor = n.step(1)
	return n.Range()
}

// GoToToday re-anchors on the current date, keeping the view mode.
func (n *Navigator) GoToToday() []Date {
	n.anchor = n.Today()
	return n.Range()
}

// Navigate dispatches a Direction.
func (n *Navigator) Navigate(dir Direction) ([]Date, error) {
	switch dir {
	case DirPrevious:
		return n.Previous(), nil
	case DirNext:
		return n.Next(), nil
	case DirToday:
		return n.GoToToday(), nil
	}
	return nil, fmt.Errorf("calendar: unknown direction %q", dir)
}

// SetViewMode switches the mode. The anchor is left untouched. Unknown modes
// are rejected and leave the navigator as it was.
func (n *Navigator) SetViewMode(mode ViewMode) ([]Date, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownViewMode, mode)
	}
	n.mode = mode
	return n.Range(), nil
}

// SetAnchor jumps to an explicit date.
func (n *Navigator) SetAnchor(d Date) []Date {
	n.anchor = d
	return n.Range()
}

// Range computes the dates displayed for the current anchor and mode.
func (n *Navigator) Range() []Date {
	return RangeFrom(n.anchor, n.mode, n.weekStart)
}

func (n *Navigator) step(sign int) Date {
	if n.mode == ViewMonth {
		return n.anchor.AddMonths(sign)
	}
	return n.anchor.AddDays(7 * sign)
}
