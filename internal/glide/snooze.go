package glide

import (
	"time"

	"glidemoney/internal/core"
)

type Snooze struct {
	RemindAt time.Time
	Note     string
}

const (
	noteBeforeSafeBy = "Reminder before safe-by so it posts in time."
	noteNextMoneyDay = "Next money day."
)

// SmartSnooze defers a payment reminder to the next money day unless that
// would miss the safe-by, in which case it fires a day before safe-by.
func SmartSnooze(nextCadence, safeBy time.Time) Snooze {
	if safeBy.Before(nextCadence) {
		return Snooze{RemindAt: safeBy.Add(-24 * time.Hour), Note: noteBeforeSafeBy}
	}
	return Snooze{RemindAt: nextCadence, Note: noteNextMoneyDay}
}

// NextMoneyDay returns the first pay date of the cadence strictly after now,
// counting from a known previous pay date.
func NextMoneyDay(last, now time.Time, c core.Cadence) time.Time {
	next := last
	for !next.After(now) {
		switch c {
		case core.Monthly:
			next = next.AddDate(0, 1, 0)
		case core.BiWeekly:
			next = next.AddDate(0, 0, 14)
		default:
			next = next.AddDate(0, 0, 7)
		}
	}
	return next
}
