package storage

import "time"

// Alarm is the alarms row. Time and RepeatDays are kept in their text form
// ("05:30", "1,3,5") and parsed by the store.
type Alarm struct {
	ID            string
	Label         string
	Time          string
	Enabled       bool
	RepeatDays    string
	ToneID        string
	Volume        int
	SnoozeMinutes int
	FadeInSeconds int
	Vibrate       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Tone struct {
	ID        string
	Name      string
	MIME      string
	Size      int64
	Payload   []byte
	CreatedAt time.Time
}

type ArmedInstant struct {
	AlarmID string
	FireAt  time.Time
	Kind    string
	ArmedAt time.Time
}

type TriggerClaim struct {
	Key       string
	AlarmID   string
	Owner     string
	ClaimedAt time.Time
}

type AlarmListFilter struct {
	Enabled *bool
	Limit   int
	Offset  int
}

type ToneListFilter struct {
	Limit  int
	Offset int
}
