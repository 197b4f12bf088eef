package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("storage: not found")

type Repository interface {
	CreateAlarm(ctx context.Context, in Alarm) error
	GetAlarm(ctx context.Context, id string) (Alarm, error)
	UpdateAlarm(ctx context.Context, in Alarm) error
	DeleteAlarm(ctx context.Context, id string) error
	ListAlarms(ctx context.Context, filter AlarmListFilter) ([]Alarm, error)

	CreateTone(ctx context.Context, in Tone) error
	GetTone(ctx context.Context, id string) (Tone, error)
	DeleteTone(ctx context.Context, id string) error
	ListTones(ctx context.Context, filter ToneListFilter) ([]Tone, error)

	ArmInstant(ctx context.Context, in ArmedInstant) error
	GetArmed(ctx context.Context, alarmID string) (ArmedInstant, error)
	DisarmInstant(ctx context.Context, alarmID string) error
	ListArmed(ctx context.Context) ([]ArmedInstant, error)

	ClaimTrigger(ctx context.Context, in TriggerClaim) (TriggerClaim, bool, error)
	GetClaim(ctx context.Context, key string) (TriggerClaim, error)
	PruneClaims(ctx context.Context, before time.Time) (int64, error)
}
