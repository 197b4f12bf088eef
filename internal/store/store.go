package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/storage"
)

// AlarmRepository is the slice of storage the store needs.
type AlarmRepository interface {
	CreateAlarm(ctx context.Context, in storage.Alarm) error
	GetAlarm(ctx context.Context, id string) (storage.Alarm, error)
	UpdateAlarm(ctx context.Context, in storage.Alarm) error
	DeleteAlarm(ctx context.Context, id string) error
	ListAlarms(ctx context.Context, filter storage.AlarmListFilter) ([]storage.Alarm, error)
}

// AlarmStore is the CRUD facade over persisted alarm definitions. Every
// successful mutation is reported to the registered listeners.
type AlarmStore struct {
	repo   AlarmRepository
	clock  clock.Clock
	logger *slog.Logger
	newID  func() string

	mu        sync.RWMutex
	listeners []func(id string)
}

func New(repo AlarmRepository, clk clock.Clock, logger *slog.Logger) *AlarmStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AlarmStore{
		repo:   repo,
		clock:  clk,
		logger: logging.OrDiscard(logger),
		newID:  uuid.NewString,
	}
}

// OnChange registers fn to be called with the alarm id after each mutation.
func (s *AlarmStore) OnChange(fn func(id string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *AlarmStore) notify(id string) {
	s.mu.RLock()
	listeners := append([]func(string){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(id)
	}
}

func (s *AlarmStore) Create(ctx context.Context, in model.AlarmInput) (model.Alarm, error) {
	alarm := in.Alarm(s.newID(), s.clock.Now().UTC())
	if err := alarm.Validate(); err != nil {
		return model.Alarm{}, err
	}
	if err := s.repo.CreateAlarm(ctx, toRow(alarm)); err != nil {
		return model.Alarm{}, fmt.Errorf("create alarm: %w", err)
	}
	s.logger.Debug("alarm created", "alarm_id", alarm.ID, "time", alarm.Time.String(), "days", alarm.RepeatDays.String())
	s.notify(alarm.ID)
	return alarm, nil
}

// Update merges patch into the stored alarm. A missing id is not an error;
// callers re-read to confirm.
func (s *AlarmStore) Update(ctx context.Context, id string, patch model.Patch) error {
	row, err := s.repo.GetAlarm(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load alarm %s: %w", id, err)
	}
	current, err := fromRow(row)
	if err != nil {
		return fmt.Errorf("decode alarm %s: %w", id, err)
	}
	next := patch.Apply(current)
	next.UpdatedAt = s.clock.Now().UTC()
	if err := next.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateAlarm(ctx, toRow(next)); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("update alarm %s: %w", id, err)
	}
	s.notify(id)
	return nil
}

// Delete removes the alarm and, through the foreign key, its armed instant.
func (s *AlarmStore) Delete(ctx context.Context, id string) error {
	err := s.repo.DeleteAlarm(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete alarm %s: %w", id, err)
	}
	s.notify(id)
	return nil
}

// List returns every alarm, failing on unreadable or corrupt rows.
func (s *AlarmStore) List(ctx context.Context) ([]model.Alarm, error) {
	rows, err := s.repo.ListAlarms(ctx, storage.AlarmListFilter{})
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	out := make([]model.Alarm, 0, len(rows))
	for _, row := range rows {
		alarm, decodeErr := fromRow(row)
		if decodeErr != nil {
			return nil, fmt.Errorf("decode alarm %s: %w", row.ID, decodeErr)
		}
		out = append(out, alarm)
	}
	return out, nil
}

// GetAll never fails: unreadable rows are logged and the set is empty.
func (s *AlarmStore) GetAll(ctx context.Context) []model.Alarm {
	alarms, err := s.List(ctx)
	if err != nil {
		s.logger.Error("alarm data unreadable; treating as empty", logging.Err(err))
		return []model.Alarm{}
	}
	return alarms
}

func (s *AlarmStore) Get(ctx context.Context, id string) (model.Alarm, bool) {
	row, err := s.repo.GetAlarm(ctx, id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("get alarm failed", "alarm_id", id, logging.Err(err))
		}
		return model.Alarm{}, false
	}
	alarm, err := fromRow(row)
	if err != nil {
		s.logger.Error("corrupt alarm data", "alarm_id", id, logging.Err(err))
		return model.Alarm{}, false
	}
	return alarm, true
}

// Import stores a fully formed alarm under its own id, replacing any local
// copy. Timestamps missing from the source are stamped now.
func (s *AlarmStore) Import(ctx context.Context, alarm model.Alarm) error {
	now := s.clock.Now().UTC()
	if alarm.CreatedAt.IsZero() {
		alarm.CreatedAt = now
	}
	if alarm.UpdatedAt.IsZero() {
		alarm.UpdatedAt = now
	}
	alarm.RepeatDays = alarm.RepeatDays.Normalize()
	if err := alarm.Validate(); err != nil {
		return err
	}
	row := toRow(alarm)
	err := s.repo.UpdateAlarm(ctx, row)
	if errors.Is(err, storage.ErrNotFound) {
		err = s.repo.CreateAlarm(ctx, row)
	}
	if err != nil {
		return fmt.Errorf("import alarm %s: %w", alarm.ID, err)
	}
	s.notify(alarm.ID)
	return nil
}

func toRow(a model.Alarm) storage.Alarm {
	return storage.Alarm{
		ID:            a.ID,
		Label:         a.Label,
		Time:          a.Time.String(),
		Enabled:       a.Enabled,
		RepeatDays:    encodeDays(a.RepeatDays),
		ToneID:        a.ToneID,
		Volume:        a.Volume,
		SnoozeMinutes: a.SnoozeMinutes,
		FadeInSeconds: a.FadeInSeconds,
		Vibrate:       a.Vibrate,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func fromRow(row storage.Alarm) (model.Alarm, error) {
	at, err := model.ParseClockTime(row.Time)
	if err != nil {
		return model.Alarm{}, err
	}
	days, err := decodeDays(row.RepeatDays)
	if err != nil {
		return model.Alarm{}, err
	}
	alarm := model.Alarm{
		ID:            row.ID,
		Label:         row.Label,
		Time:          at,
		Enabled:       row.Enabled,
		RepeatDays:    days,
		ToneID:        row.ToneID,
		Volume:        row.Volume,
		SnoozeMinutes: row.SnoozeMinutes,
		FadeInSeconds: row.FadeInSeconds,
		Vibrate:       row.Vibrate,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if err := alarm.Validate(); err != nil {
		return model.Alarm{}, err
	}
	return alarm, nil
}

func encodeDays(days model.Weekdays) string {
	norm := days.Normalize()
	parts := make([]string, 0, len(norm))
	for _, d := range norm {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func decodeDays(raw string) (model.Weekdays, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Weekdays{}, nil
	}
	out := make(model.Weekdays, 0, 7)
	for _, token := range strings.Split(raw, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(token))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", model.ErrInvalidWeekday, token)
		}
		out = append(out, d)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out.Normalize(), nil
}
