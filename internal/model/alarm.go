package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidAlarm = errors.New("model: invalid alarm")
	ErrInvalidTime  = errors.New("model: invalid clock time")
)

const (
	DefaultToneID        = "bell"
	DefaultVolume        = 80
	DefaultSnoozeMinutes = 5
)

// ClockTime is a device-local wall-clock time of day with minute precision.
type ClockTime struct {
	Hour   int
	Minute int
}

func ParseClockTime(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	h, m, ok := strings.Cut(raw, ":")
	if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	ct := ClockTime{Hour: hour, Minute: minute}
	if !ct.Valid() {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, raw)
	}
	return ct, nil
}

func MustClockTime(raw string) ClockTime {
	ct, err := ParseClockTime(raw)
	if err != nil {
		panic(err)
	}
	return ct
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour <= 23 && c.Minute >= 0 && c.Minute <= 59
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns this time of day on day's calendar date, in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Alarm is the persisted alarm definition.
type Alarm struct {
	ID            string    `json:"id" yaml:"id"`
	Label         string    `json:"label" yaml:"label"`
	Time          ClockTime `json:"time" yaml:"time"`
	Enabled       bool      `json:"enabled" yaml:"enabled"`
	RepeatDays    Weekdays  `json:"repeatDays" yaml:"repeatDays"`
	ToneID        string    `json:"toneId" yaml:"toneId"`
	Volume        int       `json:"volume" yaml:"volume"`
	SnoozeMinutes int       `json:"snoozeMinutes" yaml:"snoozeMinutes"`
	FadeInSeconds int       `json:"fadeInDurationSeconds" yaml:"fadeInDurationSeconds"`
	Vibrate       bool      `json:"vibrate" yaml:"vibrate"`
	CreatedAt     time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// OneShot reports whether the alarm has no repeat days.
func (a Alarm) OneShot() bool {
	return len(a.RepeatDays) == 0
}

func (a Alarm) FadeIn() time.Duration {
	return time.Duration(a.FadeInSeconds) * time.Second
}

func (a Alarm) Snooze() time.Duration {
	return time.Duration(a.SnoozeMinutes) * time.Minute
}

func (a Alarm) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidAlarm)
	}
	return a.validateFields()
}

func (a Alarm) validateFields() error {
	if !a.Time.Valid() {
		return fmt.Errorf("%w: time %s", ErrInvalidAlarm, a.Time)
	}
	if err := a.RepeatDays.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAlarm, err)
	}
	if a.Volume < 0 || a.Volume > 100 {
		return fmt.Errorf("%w: volume %d out of range 0-100", ErrInvalidAlarm, a.Volume)
	}
	if a.SnoozeMinutes <= 0 {
		return fmt.Errorf("%w: snooze minutes must be positive, got %d", ErrInvalidAlarm, a.SnoozeMinutes)
	}
	if a.FadeInSeconds < 0 {
		return fmt.Errorf("%w: fade-in seconds must not be negative, got %d", ErrInvalidAlarm, a.FadeInSeconds)
	}
	return nil
}

// AlarmInput is an alarm definition before the store assigns identity.
type AlarmInput struct {
	Label         string
	Time          ClockTime
	Enabled       bool
	RepeatDays    Weekdays
	ToneID        string
	Volume        int
	SnoozeMinutes int
	FadeInSeconds int
	Vibrate       bool
}

// NewAlarmInput returns an enabled one-shot input with the default tone,
// volume and snooze length.
func NewAlarmInput(label string, at ClockTime) AlarmInput {
	return AlarmInput{
		Label:         label,
		Time:          at,
		Enabled:       true,
		ToneID:        DefaultToneID,
		Volume:        DefaultVolume,
		SnoozeMinutes: DefaultSnoozeMinutes,
	}
}

func (in AlarmInput) Alarm(id string, now time.Time) Alarm {
	return Alarm{
		ID:            id,
		Label:         in.Label,
		Time:          in.Time,
		Enabled:       in.Enabled,
		RepeatDays:    in.RepeatDays.Normalize(),
		ToneID:        in.ToneID,
		Volume:        in.Volume,
		SnoozeMinutes: in.SnoozeMinutes,
		FadeInSeconds: in.FadeInSeconds,
		Vibrate:       in.Vibrate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Label         *string
	Time          *ClockTime
	Enabled       *bool
	RepeatDays    *Weekdays
	ToneID        *string
	Volume        *int
	SnoozeMinutes *int
	FadeInSeconds *int
	Vibrate       *bool
}

func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply returns a copy of a with the patch applied. ID and CreatedAt are
// never changed.
func (p Patch) Apply(a Alarm) Alarm {
	if p.Label != nil {
		a.Label = *p.Label
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Enabled != nil {
		a.Enabled = *p.Enabled
	}
	if p.RepeatDays != nil {
		a.RepeatDays = p.RepeatDays.Normalize()
	}
	if p.ToneID != nil {
		a.ToneID = *p.ToneID
	}
	if p.Volume != nil {
		a.Volume = *p.Volume
	}
	if p.SnoozeMinutes != nil {
		a.SnoozeMinutes = *p.SnoozeMinutes
	}
	if p.FadeInSeconds != nil {
		a.FadeInSeconds = *p.FadeInSeconds
	}
	if p.Vibrate != nil {
		a.Vibrate = *p.Vibrate
	}
	return a
}

// Ref returns a pointer to v, for building patches.
func Ref[T any](v T) *T {
	return &v
}
