package model

import "time"

type ArmKind string

const (
	ArmScheduled ArmKind = "scheduled"
	ArmSnoozed   ArmKind = "snoozed"
)

func (k ArmKind) IsValid() bool {
	return k == ArmScheduled || k == ArmSnoozed
}

// ArmedInstant is the single pending fire instant of an alarm.
type ArmedInstant struct {
	AlarmID string
	At      time.Time
	Kind    ArmKind
}

// Key derives the trigger key for this instant in loc.
func (a ArmedInstant) Key(loc *time.Location) TriggerKey {
	return KeyFor(a.AlarmID, a.At.In(loc))
}

// TriggerKey identifies one scheduled instant of one alarm: alarm id,
// calendar date and time of day.
type TriggerKey string

const triggerKeyLayout = "2006-01-02T15:04:05"

func KeyFor(alarmID string, at time.Time) TriggerKey {
	return TriggerKey(alarmID + "@" + at.Format(triggerKeyLayout))
}
