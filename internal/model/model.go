package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a Meeting.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusCompleted   Status = "completed"
	StatusRescheduled Status = "rescheduled"
	StatusCanceled    Status = "canceled"
)

// Terminal reports whether no further lifecycle transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Active reports whether a meeting in state s can still be acted upon.
// A rescheduled meeting is treated the same as a scheduled one.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusRescheduled
}

// ParseStatus converts a string to a Status or returns an error for unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusScheduled, StatusCompleted, StatusRescheduled, StatusCanceled:
		return s, nil
	case "":
		return StatusScheduled, nil
	}
	return "", fmt.Errorf("model: unknown status %q", raw)
}

// Kind classifies a meeting.
type Kind string

const (
	KindInterview       Kind = "interview"
	KindCoachingSession Kind = "coaching-session"
)

// ParseKind converts a string to a Kind. Empty input yields KindInterview.
func ParseKind(raw string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(raw)))
	switch k {
	case KindInterview, KindCoachingSession:
		return k, nil
	case "":
		return KindInterview, nil
	}
	return "", fmt.Errorf("model: unknown meeting kind %q", raw)
}

// Party identifies who canceled a meeting.
type Party string

const (
	PartyOrganizer   Party = "organizer"
	PartyCounterpart Party = "counterpart"
)

// ParseParty converts a string to a Party.
func ParseParty(raw string) (Party, error) {
	p := Party(strings.ToLower(strings.TrimSpace(raw)))
	switch p {
	case PartyOrganizer, PartyCounterpart:
		return p, nil
	}
	return "", fmt.Errorf("model: unknown party %q", raw)
}

// Cancellation records why, by whom and when a meeting was canceled.
type Cancellation struct {
	Reason     string    `json:"reason"`
	CanceledBy Party     `json:"canceled_by"`
	CanceledAt time.Time `json:"canceled_at"`
}

// Meeting is a single scheduled meeting as handed to the engine by the
// external store.
type Meeting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	StartsAt        time.Time `json:"starts_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Kind            Kind      `json:"kind"`

	// Participants keep insertion order; that is the display order.
	Participants []string `json:"participants"`
	// MeetingLink is empty for in-person meetings.
	MeetingLink string `json:"meeting_link,omitempty"`

	Status       Status        `json:"status"`
	Cancellation *Cancellation `json:"cancellation,omitempty"`
}

// EndsAt returns the instant the meeting is over.
func (m Meeting) EndsAt() time.Time {
	return m.StartsAt.Add(time.Duration(m.DurationMinutes) * time.Minute)
}

// Remote reports whether the meeting has a join link.
func (m Meeting) Remote() bool {
	return m.MeetingLink != ""
}

// Clone returns a deep copy so callers can hand out snapshots safely.
func (m Meeting) Clone() Meeting {
	out := m
	if m.Participants != nil {
		out.Participants = append([]string(nil), m.Participants...)
	}
	if m.Cancellation != nil {
		c := *m.Cancellation
		out.Cancellation = &c
	}
	return out
}

// Validate checks the record-level invariants of a meeting.
func (m Meeting) Validate() error {
	var errs []error
	if strings.TrimSpace(m.ID) == "" {
		errs = append(errs, errors.New("id is empty"))
	}
	if m.StartsAt.IsZero() {
		errs = append(errs, errors.New("starts_at is zero"))
	}
	if m.DurationMinutes <= 0 {
		errs = append(errs, fmt.Errorf("duration_minutes must be positive, got %d", m.DurationMinutes))
	}
	if len(m.Participants) == 0 {
		errs = append(errs, errors.New("participants is empty"))
	}
	if _, err := ParseStatus(string(m.Status)); err != nil || m.Status == "" {
		errs = append(errs, fmt.Errorf("invalid status %q", m.Status))
	}
	if (m.Status == StatusCanceled) != (m.Cancellation != nil) {
		errs = append(errs, fmt.Errorf("cancellation presence does not match status %q", m.Status))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("model: meeting %q: %w", m.ID, errors.Join(errs...))
}
