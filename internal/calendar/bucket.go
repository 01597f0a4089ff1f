package calendar

import (
	"sort"
	"time"

	"meetcal/internal/model"
)

// Bucket groups meetings by the calendar day their start falls on in loc.
//
// Every date in dates gets an entry, even when empty, so callers can render
// days without meetings. Meetings outside dates are dropped. Each bucket is
// sorted by start time; meetings starting at the same instant keep their
// input order. A nil loc means time.Local.
func Bucket(meetings []model.Meeting, dates []Date, loc *time.Location) map[Date][]model.Meeting {
	if loc == nil {
		loc = time.Local
	}

	out := make(map[Date][]model.Meeting, len(dates))
	for _, d := range dates {
		out[d] = []model.Meeting{}
	}

	for _, m := range meetings {
		key := DateOf(m.StartsAt.In(loc))
		bucket, ok := out[key]
		if !ok {
			continue
		}
		out[key] = append(bucket, m)
	}

	for _, bucket := range out {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].StartsAt.Before(bucket[j].StartsAt)
		})
	}
	return out
}
