package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/storage"
)

type unreadableRepo struct {
	*storage.SQLiteRepository
}

func (unreadableRepo) ListAlarms(context.Context, storage.AlarmListFilter) ([]storage.Alarm, error) {
	return nil, errors.New("disk I/O error")
}

type recordingRemote struct {
	alarms []model.Alarm
	pushes int
}

func (r *recordingRemote) Pull(context.Context, string) ([]model.Alarm, error) {
	return r.alarms, nil
}

func (r *recordingRemote) Push(_ context.Context, _ string, alarms []model.Alarm) error {
	r.pushes++
	r.alarms = alarms
	return nil
}

func TestFileRemoteRoundTrip(t *testing.T) {
	remote := FileRemote{Dir: t.TempDir()}
	ctx := t.Context()

	empty, err := remote.Pull(ctx, "amina")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty pull for unknown user, got %v %v", empty, err)
	}

	a := model.NewAlarmInput("Fajr", model.MustClockTime("05:30")).Alarm("a1", fixedNow())
	a.RepeatDays = model.Weekdays{1, 3, 5}
	if err := remote.Push(ctx, "amina", []model.Alarm{a}); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err := remote.Pull(ctx, "amina")
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a1" || got[0].Time.String() != "05:30" || got[0].RepeatDays.String() != "Mon,Wed,Fri" {
		t.Fatalf("unexpected pulled alarms: %+v", got)
	}
}

func TestSyncLocalWinsAndImportsRemoteOnly(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := t.Context()
	local, err := s.Create(ctx, model.NewAlarmInput("Local", model.MustClockTime("05:30")))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	remote := FileRemote{Dir: t.TempDir()}
	conflicting := local
	conflicting.Label = "Remote edit"
	remoteOnly := model.NewAlarmInput("Remote only", model.MustClockTime("21:00")).Alarm("remote-1", fixedNow())
	if err := remote.Push(ctx, "amina", []model.Alarm{conflicting, remoteOnly}); err != nil {
		t.Fatalf("seed remote: %v", err)
	}

	report, err := NewSyncer(s, remote, StaticIdentity("amina"), nil).Sync(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Pulled != 2 || report.Imported != 1 || report.Skipped != 1 || report.Pushed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	got, _ := s.Get(ctx, local.ID)
	if got.Label != "Local" {
		t.Fatalf("expected local copy to win, got %q", got.Label)
	}
	if _, ok := s.Get(ctx, "remote-1"); !ok {
		t.Fatal("expected remote-only alarm imported")
	}

	pushed, err := remote.Pull(ctx, "amina")
	if err != nil {
		t.Fatalf("pull after sync: %v", err)
	}
	if len(pushed) != 2 {
		t.Fatalf("expected merged set pushed, got %d", len(pushed))
	}
	for _, a := range pushed {
		if a.ID == local.ID && a.Label != "Local" {
			t.Fatalf("expected local label pushed, got %q", a.Label)
		}
	}
}

func TestSyncRequiresIdentity(t *testing.T) {
	s, _, _ := setupStore(t)
	if _, err := NewSyncer(s, FileRemote{Dir: t.TempDir()}, StaticIdentity(" "), nil).Sync(t.Context()); !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
}

func TestSyncAbortsWhenLocalUnreadable(t *testing.T) {
	_, repo, clk := setupStore(t)
	s := New(unreadableRepo{repo}, clk, nil)
	ctx := t.Context()

	remoteOnly := model.NewAlarmInput("Remote only", model.MustClockTime("21:00")).Alarm("remote-1", fixedNow())
	remote := &recordingRemote{alarms: []model.Alarm{remoteOnly}}
	if _, err := NewSyncer(s, remote, StaticIdentity("amina"), nil).Sync(ctx); err == nil {
		t.Fatal("expected sync to fail when local alarms cannot be read")
	}
	if remote.pushes != 0 {
		t.Fatalf("expected nothing pushed, got %d pushes", remote.pushes)
	}
	if len(remote.alarms) != 1 {
		t.Fatalf("expected remote set untouched, got %+v", remote.alarms)
	}
	if _, err := repo.GetAlarm(ctx, "remote-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected remote alarm not imported, got %v", err)
	}
}

func TestFileRemoteStampsFromClock(t *testing.T) {
	dir := t.TempDir()
	stamp := time.Date(2026, 3, 1, 8, 15, 0, 0, time.UTC)
	remote := FileRemote{Dir: dir, Clock: clock.NewFake(stamp)}
	if err := remote.Push(t.Context(), "amina", []model.Alarm{}); err != nil {
		t.Fatalf("push: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "amina.yaml"))
	if err != nil {
		t.Fatalf("read pushed document: %v", err)
	}
	var doc remoteDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode pushed document: %v", err)
	}
	if !doc.UpdatedAt.Equal(stamp) || doc.User != "amina" {
		t.Fatalf("expected document stamped %v for amina, got %+v", stamp, doc)
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
}
