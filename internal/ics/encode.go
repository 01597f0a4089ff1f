package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"meetcal/internal/model"
)

const productID = "-//meetcal//meetings//EN"

// Encode renders meetings as an iCalendar document Decode can read back.
// Times are written in UTC.
func Encode(meetings []model.Meeting, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)

	for _, m := range meetings {
		ev := cal.AddEvent(m.ID)
		ev.SetDtStampTime(stamp.UTC())
		ev.SetSummary(m.Title)
		ev.SetStartAt(m.StartsAt.UTC())
		ev.SetEndAt(m.EndsAt().UTC())
		ev.SetProperty(propKind, string(m.Kind))
		ev.SetProperty(propStatus, string(m.Status))

		for _, p := range m.Participants {
			ev.AddProperty(ical.ComponentPropertyAttendee, "mailto:"+p, ical.WithCN(p))
		}
		if m.MeetingLink != "" {
			ev.SetProperty(ical.ComponentPropertyUrl, m.MeetingLink)
		}

		if c := m.Cancellation; c != nil {
			ev.SetProperty(ical.ComponentPropertyStatus, "CANCELLED")
			ev.SetProperty(propCancelReason, c.Reason)
			ev.SetProperty(propCanceledBy, string(c.CanceledBy))
			if !c.CanceledAt.IsZero() {
				ev.SetProperty(propCanceledAt, c.CanceledAt.UTC().Format("20060102T150405Z"))
			}
		} else {
			ev.SetProperty(ical.ComponentPropertyStatus, "CONFIRMED")
		}
	}
	return cal.Serialize()
}
