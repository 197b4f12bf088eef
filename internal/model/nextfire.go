package model

import (
	"time"

	"github.com/teambition/rrule-go"
)

// NextFire returns the soonest instant strictly after now at which the alarm
// is due. One-shot alarms fire today if the time is still ahead, otherwise
// tomorrow. Repeating alarms fire on the earliest matching weekday, today
// included when the time has not passed yet.
func NextFire(a Alarm, now time.Time) time.Time {
	if a.OneShot() {
		next := a.Time.On(now)
		for !next.After(now) {
			next = a.Time.On(next.AddDate(0, 0, 1))
		}
		return next
	}

	if rule, err := WeeklyRule(a, now); err == nil {
		if next := rule.After(now, false); !next.IsZero() && next.After(now) {
			return next
		}
	}
	return scanWeekly(a, now)
}

// Upcoming previews the next n fire instants after now. A one-shot alarm has
// at most one.
func Upcoming(a Alarm, now time.Time, n int) []time.Time {
	if n <= 0 {
		return []time.Time{}
	}
	if a.OneShot() {
		return []time.Time{NextFire(a, now)}
	}
	out := make([]time.Time, 0, n)
	cursor := now
	for i := 0; i < n; i++ {
		next := NextFire(a, cursor)
		out = append(out, next)
		cursor = next
	}
	return out
}

// WeeklyRule builds the weekly recurrence for a repeating alarm, anchored at
// the alarm time on from's calendar date.
func WeeklyRule(a Alarm, from time.Time) (*rrule.RRule, error) {
	days := make([]rrule.Weekday, 0, len(a.RepeatDays))
	for _, d := range a.RepeatDays.Normalize() {
		days = append(days, rruleWeekday(time.Weekday(d)))
	}
	return rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   a.Time.On(from),
		Byweekday: days,
		Wkst:      rrule.SU,
	})
}

// scanWeekly is the plain day-by-day scan used if the rule cannot be built.
func scanWeekly(a Alarm, now time.Time) time.Time {
	probe := a.Time.On(now)
	for i := 0; i < 8; i++ {
		if a.RepeatDays.Contains(probe.Weekday()) && probe.After(now) {
			return probe
		}
		probe = a.Time.On(probe.AddDate(0, 0, 1))
	}
	return a.Time.On(now.AddDate(0, 0, 7))
}

func rruleWeekday(d time.Weekday) rrule.Weekday {
	switch d {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

// SameDay reports whether a and b fall on the same calendar date in b's
// location.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
