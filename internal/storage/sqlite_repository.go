package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteTimeLayout is fixed width so stored instants compare correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// OpenSQLite opens path with foreign keys and a busy timeout on every pooled
// connection, then applies pending migrations.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func dsn(path string) string {
	params := "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if path == ":memory:" {
		return "file::memory:?cache=shared&" + params
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + params + "&_journal_mode=WAL"
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// DB exposes the handle for migrations and diagnostics.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

const alarmColumns = `id, label, time_of_day, enabled, repeat_days, tone_id, volume, snooze_minutes, fade_in_seconds, vibrate, created_at, updated_at`

func (r *SQLiteRepository) CreateAlarm(ctx context.Context, in Alarm) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alarms (`+alarmColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Label, in.Time, boolInt(in.Enabled), in.RepeatDays, in.ToneID, in.Volume,
		in.SnoozeMinutes, in.FadeInSeconds, boolInt(in.Vibrate), mustTime(in.CreatedAt), mustTime(in.UpdatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetAlarm(ctx context.Context, id string) (Alarm, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+alarmColumns+` FROM alarms WHERE id = ?`, id)
	item, err := scanAlarm(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Alarm{}, ErrNotFound
		}
		return Alarm{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateAlarm(ctx context.Context, in Alarm) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE alarms
		SET label = ?, time_of_day = ?, enabled = ?, repeat_days = ?, tone_id = ?, volume = ?,
			snooze_minutes = ?, fade_in_seconds = ?, vibrate = ?, updated_at = ?
		WHERE id = ?`,
		in.Label, in.Time, boolInt(in.Enabled), in.RepeatDays, in.ToneID, in.Volume,
		in.SnoozeMinutes, in.FadeInSeconds, boolInt(in.Vibrate), mustTime(in.UpdatedAt), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteAlarm(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListAlarms(ctx context.Context, filter AlarmListFilter) ([]Alarm, error) {
	query := `SELECT ` + alarmColumns + ` FROM alarms`
	args := make([]any, 0, 3)
	if filter.Enabled != nil {
		query += ` WHERE enabled = ?`
		args = append(args, boolInt(*filter.Enabled))
	}
	query += ` ORDER BY time_of_day ASC, created_at ASC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Alarm, 0)
	for rows.Next() {
		item, scanErr := scanAlarm(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateTone(ctx context.Context, in Tone) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO custom_tones (id, name, mime, size, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.Name, in.MIME, in.Size, in.Payload, mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetTone(ctx context.Context, id string) (Tone, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, name, mime, size, payload, created_at FROM custom_tones WHERE id = ?`, id)
	var out Tone
	var created string
	if err := row.Scan(&out.ID, &out.Name, &out.MIME, &out.Size, &out.Payload, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Tone{}, ErrNotFound
		}
		return Tone{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Tone{}, err
	}
	out.CreatedAt = createdAt
	return out, nil
}

func (r *SQLiteRepository) DeleteTone(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM custom_tones WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// ListTones returns tone metadata only; payloads are loaded through GetTone.
func (r *SQLiteRepository) ListTones(ctx context.Context, filter ToneListFilter) ([]Tone, error) {
	args := make([]any, 0, 2)
	query := `SELECT id, name, mime, size, created_at FROM custom_tones ORDER BY name ASC, created_at ASC` +
		applyPagination(&args, filter.Limit, filter.Offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Tone, 0)
	for rows.Next() {
		var item Tone
		var created string
		if err := rows.Scan(&item.ID, &item.Name, &item.MIME, &item.Size, &created); err != nil {
			return nil, err
		}
		createdAt, err := parseRequiredTime(created)
		if err != nil {
			return nil, err
		}
		item.CreatedAt = createdAt
		out = append(out, item)
	}
	return out, rows.Err()
}

// ArmInstant replaces the alarm's pending instant.
func (r *SQLiteRepository) ArmInstant(ctx context.Context, in ArmedInstant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO armed_instants (alarm_id, fire_at, kind, armed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(alarm_id) DO UPDATE SET fire_at = excluded.fire_at, kind = excluded.kind, armed_at = excluded.armed_at`,
		in.AlarmID, mustTime(in.FireAt), in.Kind, mustTime(in.ArmedAt),
	)
	return err
}

func (r *SQLiteRepository) GetArmed(ctx context.Context, alarmID string) (ArmedInstant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT alarm_id, fire_at, kind, armed_at FROM armed_instants WHERE alarm_id = ?`, alarmID)
	item, err := scanArmed(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArmedInstant{}, ErrNotFound
		}
		return ArmedInstant{}, err
	}
	return item, nil
}

// DisarmInstant is a no-op when nothing is armed.
func (r *SQLiteRepository) DisarmInstant(ctx context.Context, alarmID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM armed_instants WHERE alarm_id = ?`, alarmID)
	return err
}

func (r *SQLiteRepository) ListArmed(ctx context.Context) ([]ArmedInstant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT alarm_id, fire_at, kind, armed_at FROM armed_instants ORDER BY fire_at ASC, alarm_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ArmedInstant, 0)
	for rows.Next() {
		item, scanErr := scanArmed(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ClaimTrigger records in as the consumer of its key. It reports won=false
// and returns the standing claim when another owner got there first.
func (r *SQLiteRepository) ClaimTrigger(ctx context.Context, in TriggerClaim) (TriggerClaim, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trigger_claims (trigger_key, alarm_id, owner, claimed_at)
		VALUES (?, ?, ?, ?)`,
		in.Key, in.AlarmID, in.Owner, mustTime(in.ClaimedAt),
	)
	if err != nil {
		return TriggerClaim{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return TriggerClaim{}, false, err
	}
	if affected == 1 {
		return in, true, nil
	}
	existing, err := r.GetClaim(ctx, in.Key)
	if err != nil {
		return TriggerClaim{}, false, err
	}
	return existing, false, nil
}

func (r *SQLiteRepository) GetClaim(ctx context.Context, key string) (TriggerClaim, error) {
	row := r.db.QueryRowContext(ctx, `SELECT trigger_key, alarm_id, owner, claimed_at FROM trigger_claims WHERE trigger_key = ?`, key)
	var out TriggerClaim
	var claimed string
	if err := row.Scan(&out.Key, &out.AlarmID, &out.Owner, &claimed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TriggerClaim{}, ErrNotFound
		}
		return TriggerClaim{}, err
	}
	claimedAt, err := parseRequiredTime(claimed)
	if err != nil {
		return TriggerClaim{}, err
	}
	out.ClaimedAt = claimedAt
	return out, nil
}

// PruneClaims drops claims recorded before the cutoff.
func (r *SQLiteRepository) PruneClaims(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trigger_claims WHERE claimed_at < ?`, mustTime(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		if limit <= 0 {
			sql += " LIMIT -1"
		}
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlarm(s scanner) (Alarm, error) {
	var out Alarm
	var enabled, vibrate int
	var created, updated string
	if err := s.Scan(&out.ID, &out.Label, &out.Time, &enabled, &out.RepeatDays, &out.ToneID, &out.Volume,
		&out.SnoozeMinutes, &out.FadeInSeconds, &vibrate, &created, &updated); err != nil {
		return Alarm{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return Alarm{}, err
	}
	updatedAt, err := parseRequiredTime(updated)
	if err != nil {
		return Alarm{}, err
	}
	out.Enabled = enabled == 1
	out.Vibrate = vibrate == 1
	out.CreatedAt = createdAt
	out.UpdatedAt = updatedAt
	return out, nil
}

func scanArmed(s scanner) (ArmedInstant, error) {
	var out ArmedInstant
	var fire, armed string
	if err := s.Scan(&out.AlarmID, &fire, &out.Kind, &armed); err != nil {
		return ArmedInstant{}, err
	}
	fireAt, err := parseRequiredTime(fire)
	if err != nil {
		return ArmedInstant{}, err
	}
	armedAt, err := parseRequiredTime(armed)
	if err != nil {
		return ArmedInstant{}, err
	}
	out.FireAt = fireAt
	out.ArmedAt = armedAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
