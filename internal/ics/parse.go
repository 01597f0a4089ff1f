package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// Custom properties carrying fields iCalendar has no slot for.
const (
	propKind         ical.ComponentProperty = "X-MEETCAL-KIND"
	propStatus       ical.ComponentProperty = "X-MEETCAL-STATUS"
	propCancelReason ical.ComponentProperty = "X-MEETCAL-CANCEL-REASON"
	propCanceledBy   ical.ComponentProperty = "X-MEETCAL-CANCELED-BY"
	propCanceledAt   ical.ComponentProperty = "X-MEETCAL-CANCELED-AT"
	propDuration     ical.ComponentProperty = "DURATION"
)

const (
	defaultDurationMinutes = 30
	upstreamCancelReason   = "canceled by organizer calendar"
)

// Decode parses a single ICS payload into meetings.
//
//   - Times come from the library's DTSTART/DTEND handling (TZID aware).
//   - VEVENTs that do not form a valid meeting are logged and skipped.
//   - Events without a UID get a stable ID derived from source, start and title.
func Decode(src Source, body []byte) ([]model.Meeting, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, fmt.Errorf("ics: parse %s: %w", src.ID, err)
	}

	meetings := make([]model.Meeting, 0)
	for _, ve := range cal.Events() {
		m, perr := decodeEvent(src, ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "id", src.ID, "reason", perr.Error())
			continue
		}
		meetings = append(meetings, m)
	}

	appLog.Info("ics decode completed", "id", src.ID, "url", redactURL(src.URL), "meeting_count", len(meetings))
	return meetings, nil
}

func decodeEvent(src Source, ve *ical.VEvent) (model.Meeting, error) {
	var out model.Meeting

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = strings.TrimSpace(p.Value)
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.StartsAt = start

	out.ID = propValue(ve, ical.ComponentPropertyUniqueId)
	if out.ID == "" {
		out.ID = fallbackID(src, start, out.Title)
	}

	out.DurationMinutes = durationMinutes(ve, start)

	kind, err := decodeKind(ve)
	if err != nil {
		return out, err
	}
	out.Kind = kind

	out.Participants = attendees(ve)
	out.MeetingLink = propValue(ve, ical.ComponentPropertyUrl)

	if err := decodeStatus(ve, &out); err != nil {
		return out, err
	}

	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func propValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

// durationMinutes prefers DTEND, then DURATION, then a default.
func durationMinutes(ve *ical.VEvent, start time.Time) int {
	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		if end, err := ve.GetEndAt(); err == nil && end.After(start) {
			return int(end.Sub(start).Round(time.Minute) / time.Minute)
		}
	}
	if raw := propValue(ve, propDuration); raw != "" {
		if d, err := parseDuration(raw); err == nil && d > 0 {
			return int(d / time.Minute)
		}
	}
	return defaultDurationMinutes
}

// parseDuration handles the time part of RFC 5545 durations: PT1H30M, P1D.
func parseDuration(v string) (time.Duration, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if !strings.HasPrefix(v, "P") {
		return 0, fmt.Errorf("duration %q: missing P", v)
	}
	v = v[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			inTime = true
		default:
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0, fmt.Errorf("duration %q: %w", v, err)
			}
			num = ""
			switch {
			case r == 'W':
				total += time.Duration(n) * 7 * 24 * time.Hour
			case r == 'D':
				total += time.Duration(n) * 24 * time.Hour
			case r == 'H' && inTime:
				total += time.Duration(n) * time.Hour
			case r == 'M' && inTime:
				total += time.Duration(n) * time.Minute
			case r == 'S' && inTime:
				total += time.Duration(n) * time.Second
			default:
				return 0, fmt.Errorf("duration %q: unexpected %q", v, r)
			}
		}
	}
	return total, nil
}

func decodeKind(ve *ical.VEvent) (model.Kind, error) {
	if raw := propValue(ve, propKind); raw != "" {
		return model.ParseKind(raw)
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyCategories) {
		for _, c := range strings.Split(p.Value, ",") {
			if k, err := model.ParseKind(c); err == nil && strings.TrimSpace(c) != "" {
				return k, nil
			}
		}
	}
	return model.KindInterview, nil
}

// attendees returns participants in document order, preferring the CN
// parameter over the mailto address.
func attendees(ve *ical.VEvent) []string {
	props := ve.GetProperties(ical.ComponentPropertyAttendee)
	out := make([]string, 0, len(props))
	for _, p := range props {
		name := ""
		if cn, ok := p.ICalParameters["CN"]; ok && len(cn) > 0 {
			name = strings.TrimSpace(cn[0])
		}
		if name == "" {
			name = strings.TrimSpace(p.Value)
			if len(name) >= len("mailto:") && strings.EqualFold(name[:len("mailto:")], "mailto:") {
				name = name[len("mailto:"):]
			}
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func decodeStatus(ve *ical.VEvent, out *model.Meeting) error {
	out.Status = model.StatusScheduled
	if raw := propValue(ve, propStatus); raw != "" {
		s, err := model.ParseStatus(raw)
		if err != nil {
			return err
		}
		out.Status = s
	}
	if strings.EqualFold(propValue(ve, ical.ComponentPropertyStatus), "CANCELLED") {
		out.Status = model.StatusCanceled
	}
	if out.Status != model.StatusCanceled {
		return nil
	}

	c := &model.Cancellation{
		Reason:     propValue(ve, propCancelReason),
		CanceledBy: model.PartyOrganizer,
	}
	if c.Reason == "" {
		c.Reason = upstreamCancelReason
	}
	if raw := propValue(ve, propCanceledBy); raw != "" {
		by, err := model.ParseParty(raw)
		if err != nil {
			return err
		}
		c.CanceledBy = by
	}
	if raw := propValue(ve, propCanceledAt); raw != "" {
		if t, err := parseICSTime(raw); err == nil {
			c.CanceledAt = t
		}
	}
	out.Cancellation = c
	return nil
}

// fallbackID builds a deterministic ID for VEVENTs without UID so reloads of
// the same feed keep IDs stable.
func fallbackID(src Source, start time.Time, title string) string {
	seed := src.ID + "|" + start.UTC().Format(time.RFC3339) + "|" + title
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

// parseICSTime parses a basic ICS date/date-time string.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
