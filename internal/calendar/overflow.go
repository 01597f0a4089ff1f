package calendar

import (
	"slices"

	"meetcal/internal/model"
)

// DefaultMaxVisible is the number of meetings a day shows inline before the
// rest collapse behind an "N more" affordance.
const DefaultMaxVisible = 4

// Overflow is the display split of one day's bucket.
type Overflow struct {
	Visible []model.Meeting
	Count   int
	// FirstHidden points at the first meeting that did not fit, so an
	// "N more" control can open it by default. Nil when Count is 0.
	FirstHidden *model.Meeting
}

// Select keeps the first maxVisible meetings of an already time-ordered
// bucket and counts the rest. A negative maxVisible is treated as 0.
// Visible is a copy; writes to it never reach bucket.
func Select(bucket []model.Meeting, maxVisible int) Overflow {
	if maxVisible < 0 {
		maxVisible = 0
	}
	if maxVisible >= len(bucket) {
		return Overflow{Visible: slices.Clone(bucket)}
	}

	first := bucket[maxVisible]
	return Overflow{
		Visible:     slices.Clone(bucket[:maxVisible]),
		Count:       len(bucket) - maxVisible,
		FirstHidden: &first,
	}
}
