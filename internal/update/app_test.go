package update

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/scheduler"
	"github.com/sandeepkv93/vigil/internal/storage"
	"github.com/sandeepkv93/vigil/internal/store"
)

type silentAlerter struct{}

func (silentAlerter) Ring(context.Context, model.Alarm) error { return nil }
func (silentAlerter) Silence()                                {}

type fixture struct {
	store *store.AlarmStore
	sched *scheduler.Scheduler
	clock *clock.Fake
}

func setupModel(t *testing.T) (Model, fixture) {
	t.Helper()
	repo, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "ui-test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	clk := clock.NewFake(time.Date(2026, 2, 9, 5, 29, 59, 0, time.UTC))
	st := store.New(repo, clk, nil)
	sched := scheduler.New(st, repo, silentAlerter{}, clk, scheduler.DefaultOptions(), nil)
	m := NewModel(context.Background(), st, sched, clk, nil)
	return m, fixture{store: st, sched: sched, clock: clk}
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		updated, _ := m.Update(k)
		m = updated.(Model)
	}
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func paletteCommand(t *testing.T, m Model, command string) Model {
	t.Helper()
	return press(t, m, runes("/"), runes(command), tea.KeyMsg{Type: tea.KeyEnter})
}

func TestNewModelDefaults(t *testing.T) {
	m, _ := setupModel(t)
	if m.Keys.Quit != "q" || m.Keys.Dismiss != "d" || m.Keys.Snooze != "s" {
		t.Fatalf("unexpected key map: %+v", m.Keys)
	}
	if m.Ringing.Kind != scheduler.StateIdle {
		t.Fatalf("expected idle, got %+v", m.Ringing)
	}
	if len(m.Alarms) != 0 {
		t.Fatalf("expected no alarms, got %d", len(m.Alarms))
	}
}

func TestPaletteAddCreatesAlarm(t *testing.T) {
	m, f := setupModel(t)
	m = paletteCommand(t, m, "add 05:30 mon,wed,fri Fajr")
	if m.Palette.Active {
		t.Fatal("expected palette closed after enter")
	}
	if m.Status.IsError {
		t.Fatalf("unexpected error status: %+v", m.Status)
	}
	all := f.store.GetAll(context.Background())
	if len(all) != 1 || all[0].Label != "Fajr" || all[0].RepeatDays.String() != "Mon,Wed,Fri" {
		t.Fatalf("unexpected alarms: %+v", all)
	}
	if len(m.Alarms) != 1 {
		t.Fatalf("expected model reloaded, got %d alarms", len(m.Alarms))
	}
	if !strings.Contains(m.View(), "Fajr") {
		t.Fatal("expected alarm label in view")
	}
}

func TestPaletteErrorsSetStatus(t *testing.T) {
	m, _ := setupModel(t)
	m = paletteCommand(t, m, "add 99:99")
	if !m.Status.IsError {
		t.Fatalf("expected error status, got %+v", m.Status)
	}
	m = paletteCommand(t, m, "toggle 4")
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "row 4") {
		t.Fatalf("expected missing row error, got %+v", m.Status)
	}
	m = paletteCommand(t, m, "dismiss")
	if !m.Status.IsError || !strings.Contains(m.Status.Text, scheduler.ErrNotRinging.Error()) {
		t.Fatalf("expected not ringing error, got %+v", m.Status)
	}
}

func TestToggleAndDeleteKeys(t *testing.T) {
	m, f := setupModel(t)
	if _, err := f.store.Create(context.Background(), model.NewAlarmInput("Fajr", model.MustClockTime("05:30"))); err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, _ := m.Update(RefreshMsg{})
	m = updated.(Model)

	m = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if all := f.store.GetAll(context.Background()); all[0].Enabled {
		t.Fatal("expected space to disable the selected alarm")
	}
	if m.Alarms[0].Enabled {
		t.Fatal("expected model to reflect disabled alarm")
	}

	m = press(t, m, runes("x"))
	if len(f.store.GetAll(context.Background())) != 0 || len(m.Alarms) != 0 {
		t.Fatal("expected x to delete the selected alarm")
	}
}

func TestRingingBannerAndDismiss(t *testing.T) {
	m, f := setupModel(t)
	a, err := f.store.Create(context.Background(), model.NewAlarmInput("Fajr", model.MustClockTime("05:30")))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	var ringing scheduler.Event
	for ev := range drainEvents(f.sched) {
		if ev.Kind == scheduler.EventRinging {
			ringing = ev
		}
	}
	if ringing.AlarmID != a.ID {
		t.Fatalf("expected ringing event, got %+v", ringing)
	}

	updated, cmd := m.Update(SchedulerEventMsg{Event: ringing})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("expected the model to keep waiting for events")
	}
	if m.Ringing.Kind != scheduler.StateRinging || !strings.Contains(m.View(), "RINGING") {
		t.Fatalf("expected ringing banner, got state %+v", m.Ringing)
	}

	m = press(t, m, runes("d"))
	if m.Ringing.Kind != scheduler.StateIdle || strings.Contains(m.View(), "RINGING") {
		t.Fatalf("expected idle after dismiss, got %+v", m.Ringing)
	}
	if m.Alarms[0].Enabled {
		t.Fatal("expected one-shot disabled after dismiss")
	}
}

func TestSnoozeKeyShowsSnoozedInstant(t *testing.T) {
	m, f := setupModel(t)
	if _, err := f.store.Create(context.Background(), model.NewAlarmInput("Fajr", model.MustClockTime("05:30"))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	updated, _ := m.Update(RefreshMsg{})
	m = updated.(Model)

	m = press(t, m, runes("s"))
	if m.Status.IsError {
		t.Fatalf("unexpected snooze error: %+v", m.Status)
	}
	u, ok := m.Upcoming[m.Alarms[0].ID]
	if !ok || u.Kind != model.ArmSnoozed || !u.At.Equal(f.clock.Now().Add(5*time.Minute)) {
		t.Fatalf("expected snoozed instant five minutes out, got %+v", u)
	}
}

func TestHelpToggleAndQuit(t *testing.T) {
	m, _ := setupModel(t)
	m = press(t, m, runes("?"))
	if !m.HelpVisible || !strings.Contains(m.View(), "help:") {
		t.Fatal("expected help panel visible")
	}
	updated, cmd := m.Update(runes("q"))
	next := updated.(Model)
	if !next.Quitting || cmd == nil {
		t.Fatal("expected quit")
	}
}

func TestStatusAndErrorMessages(t *testing.T) {
	m, _ := setupModel(t)
	updated, _ := m.Update(SetStatusMsg{Text: "ready"})
	next := updated.(Model)
	if next.Status.Text != "ready" || next.Status.IsError {
		t.Fatalf("unexpected status: %+v", next.Status)
	}

	updated, _ = next.Update(AppErrorMsg{Err: errors.New("boom")})
	next = updated.(Model)
	if next.LastError == nil || !next.Status.IsError || !strings.Contains(next.View(), "status: error: boom") {
		t.Fatalf("unexpected error status: %+v", next.Status)
	}

	updated, _ = next.Update(ClearStatusMsg{})
	next = updated.(Model)
	if next.Status.Text != "" {
		t.Fatalf("expected cleared status, got %+v", next.Status)
	}
}

func TestEventLogIsBounded(t *testing.T) {
	m, _ := setupModel(t)
	for i := 0; i < eventLogSize+3; i++ {
		updated, _ := m.Update(SchedulerEventMsg{Event: scheduler.Event{Kind: scheduler.EventFocus, At: time.Now()}})
		m = updated.(Model)
	}
	if len(m.EventLog) != eventLogSize {
		t.Fatalf("expected %d log entries, got %d", eventLogSize, len(m.EventLog))
	}
	if m.Status.Text != "opened from notification" {
		t.Fatalf("unexpected focus status: %+v", m.Status)
	}
}

func drainEvents(s *scheduler.Scheduler) <-chan scheduler.Event {
	out := make(chan scheduler.Event, 64)
	defer close(out)
	for {
		select {
		case ev := <-s.C():
			out <- ev
		default:
			return out
		}
	}
}
