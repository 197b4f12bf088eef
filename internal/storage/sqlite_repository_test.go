package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "vigil-test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func sampleAlarm(id string, created time.Time) Alarm {
	return Alarm{
		ID:            id,
		Label:         "Fajr",
		Time:          "05:30",
		Enabled:       true,
		RepeatDays:    "1,3,5",
		ToneID:        "bell",
		Volume:        80,
		SnoozeMinutes: 5,
		FadeInSeconds: 30,
		Vibrate:       true,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}

func TestAlarmCRUDAndList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")

	alarm := sampleAlarm("alarm-1", created)
	if err := repo.CreateAlarm(ctx, alarm); err != nil {
		t.Fatalf("create alarm: %v", err)
	}

	got, err := repo.GetAlarm(ctx, alarm.ID)
	if err != nil {
		t.Fatalf("get alarm: %v", err)
	}
	if got.Label != "Fajr" || got.Time != "05:30" || got.RepeatDays != "1,3,5" || !got.Vibrate || !got.Enabled {
		t.Fatalf("unexpected alarm get result: %#v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at mismatch: %s", got.CreatedAt)
	}

	alarm.Label = "Fajr (late)"
	alarm.Enabled = false
	alarm.UpdatedAt = created.Add(time.Hour)
	if err := repo.UpdateAlarm(ctx, alarm); err != nil {
		t.Fatalf("update alarm: %v", err)
	}

	other := sampleAlarm("alarm-2", created)
	other.Time = "04:00"
	if err := repo.CreateAlarm(ctx, other); err != nil {
		t.Fatalf("create second alarm: %v", err)
	}

	all, err := repo.ListAlarms(ctx, AlarmListFilter{})
	if err != nil {
		t.Fatalf("list alarms: %v", err)
	}
	if len(all) != 2 || all[0].ID != "alarm-2" {
		t.Fatalf("expected alarms ordered by time of day, got %#v", all)
	}

	enabled := true
	active, err := repo.ListAlarms(ctx, AlarmListFilter{Enabled: &enabled})
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(active) != 1 || active[0].ID != "alarm-2" {
		t.Fatalf("unexpected enabled list: %#v", active)
	}

	page, err := repo.ListAlarms(ctx, AlarmListFilter{Offset: 1})
	if err != nil {
		t.Fatalf("list with offset: %v", err)
	}
	if len(page) != 1 || page[0].ID != "alarm-1" {
		t.Fatalf("unexpected offset page: %#v", page)
	}

	if err := repo.DeleteAlarm(ctx, alarm.ID); err != nil {
		t.Fatalf("delete alarm: %v", err)
	}
	if _, err := repo.GetAlarm(ctx, alarm.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.UpdateAlarm(ctx, alarm); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update of deleted alarm, got %v", err)
	}
	if err := repo.DeleteAlarm(ctx, alarm.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestToneCRUDKeepsPayloadOutOfList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")

	payload := []byte("RIFF....WAVEfmt ")
	tone := Tone{ID: "tone-1", Name: "Adhan", MIME: "audio/wav", Size: int64(len(payload)), Payload: payload, CreatedAt: created}
	if err := repo.CreateTone(ctx, tone); err != nil {
		t.Fatalf("create tone: %v", err)
	}

	got, err := repo.GetTone(ctx, tone.ID)
	if err != nil {
		t.Fatalf("get tone: %v", err)
	}
	if string(got.Payload) != string(payload) || got.MIME != "audio/wav" {
		t.Fatalf("unexpected tone: %#v", got)
	}

	list, err := repo.ListTones(ctx, ToneListFilter{})
	if err != nil {
		t.Fatalf("list tones: %v", err)
	}
	if len(list) != 1 || list[0].Payload != nil || list[0].Size != int64(len(payload)) {
		t.Fatalf("unexpected tone list: %#v", list)
	}

	if err := repo.DeleteTone(ctx, tone.ID); err != nil {
		t.Fatalf("delete tone: %v", err)
	}
	if _, err := repo.GetTone(ctx, tone.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestArmInstantUpsertAndCascade(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-02-09T12:00:00Z")
	if err := repo.CreateAlarm(ctx, sampleAlarm("alarm-1", created)); err != nil {
		t.Fatalf("create alarm: %v", err)
	}

	first := parseRFC3339(t, "2026-02-10T05:30:00Z")
	if err := repo.ArmInstant(ctx, ArmedInstant{AlarmID: "alarm-1", FireAt: first, Kind: "scheduled", ArmedAt: created}); err != nil {
		t.Fatalf("arm: %v", err)
	}
	snooze := parseRFC3339(t, "2026-02-10T05:35:00Z")
	if err := repo.ArmInstant(ctx, ArmedInstant{AlarmID: "alarm-1", FireAt: snooze, Kind: "snoozed", ArmedAt: first}); err != nil {
		t.Fatalf("rearm: %v", err)
	}

	armed, err := repo.ListArmed(ctx)
	if err != nil {
		t.Fatalf("list armed: %v", err)
	}
	if len(armed) != 1 || !armed[0].FireAt.Equal(snooze) || armed[0].Kind != "snoozed" {
		t.Fatalf("expected a single snoozed instant, got %#v", armed)
	}

	if err := repo.DeleteAlarm(ctx, "alarm-1"); err != nil {
		t.Fatalf("delete alarm: %v", err)
	}
	if _, err := repo.GetArmed(ctx, "alarm-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected armed instant removed with alarm, got %v", err)
	}
	if err := repo.DisarmInstant(ctx, "alarm-1"); err != nil {
		t.Fatalf("disarm of missing instant should be a no-op: %v", err)
	}
}

func TestArmInstantRejectsUnknownAlarm(t *testing.T) {
	repo := setupRepo(t)
	at := parseRFC3339(t, "2026-02-10T05:30:00Z")
	if err := repo.ArmInstant(context.Background(), ArmedInstant{AlarmID: "ghost", FireAt: at, Kind: "scheduled", ArmedAt: at}); err == nil {
		t.Fatal("expected foreign key failure for unknown alarm")
	}
}

func TestClaimTriggerFirstWriterWins(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	now := parseRFC3339(t, "2026-02-10T05:30:01Z")

	claim := TriggerClaim{Key: "alarm-1@2026-02-10T05:30:00", AlarmID: "alarm-1", Owner: "ctx-a", ClaimedAt: now}
	got, won, err := repo.ClaimTrigger(ctx, claim)
	if err != nil || !won || got.Owner != "ctx-a" {
		t.Fatalf("expected first claim to win: %#v won=%v err=%v", got, won, err)
	}

	claim.Owner = "ctx-b"
	got, won, err = repo.ClaimTrigger(ctx, claim)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if won || got.Owner != "ctx-a" {
		t.Fatalf("expected second claim to lose to ctx-a, got %#v won=%v", got, won)
	}
}

func TestClaimTriggerConcurrentConnections(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "claims.db")
	repos := make([]*SQLiteRepository, 4)
	for i := range repos {
		repo, err := OpenSQLite(dbPath)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		repos[i] = repo
	}

	now := parseRFC3339(t, "2026-02-10T05:30:00Z")
	var (
		mu   sync.Mutex
		wins int
		wg   sync.WaitGroup
	)
	for i, repo := range repos {
		wg.Add(1)
		go func(owner string, repo *SQLiteRepository) {
			defer wg.Done()
			_, won, err := repo.ClaimTrigger(context.Background(), TriggerClaim{
				Key: "alarm-1@2026-02-10T05:30:00", AlarmID: "alarm-1", Owner: owner, ClaimedAt: now,
			})
			if err != nil {
				t.Errorf("claim %s: %v", owner, err)
				return
			}
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(string(rune('a'+i)), repo)
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestPruneClaims(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	old := parseRFC3339(t, "2026-01-01T05:30:00Z")
	recent := parseRFC3339(t, "2026-02-10T05:30:00Z")
	for _, c := range []TriggerClaim{
		{Key: "a@2026-01-01T05:30:00", AlarmID: "a", Owner: "x", ClaimedAt: old},
		{Key: "a@2026-02-10T05:30:00", AlarmID: "a", Owner: "x", ClaimedAt: recent},
	} {
		if _, _, err := repo.ClaimTrigger(ctx, c); err != nil {
			t.Fatalf("claim: %v", err)
		}
	}
	removed, err := repo.PruneClaims(ctx, parseRFC3339(t, "2026-02-01T00:00:00Z"))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned claim, got %d", removed)
	}
	if _, err := repo.GetClaim(ctx, "a@2026-02-10T05:30:00"); err != nil {
		t.Fatalf("recent claim should survive: %v", err)
	}
}
