package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/relay"
	"github.com/sandeepkv93/vigil/internal/storage"
	"github.com/sandeepkv93/vigil/internal/store"
)

type fakeAlerter struct {
	mu       sync.Mutex
	rings    []string
	silences int
	err      error
}

func (a *fakeAlerter) Ring(_ context.Context, alarm model.Alarm) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rings = append(a.rings, alarm.ID)
	return a.err
}

func (a *fakeAlerter) Silence() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.silences++
}

func (a *fakeAlerter) ringCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.rings)
}

type harness struct {
	sched   *Scheduler
	store   *store.AlarmStore
	repo    *storage.SQLiteRepository
	alerter *fakeAlerter
	clock   *clock.Fake
}

// day is Monday 2026-02-09.
func day(hour, minute, second int) time.Time {
	return time.Date(2026, 2, 9, hour, minute, second, 0, time.UTC)
}

func openRepo(t *testing.T, path string) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newHarness(t *testing.T, dbPath, contextID string, clk *clock.Fake) *harness {
	t.Helper()
	repo := openRepo(t, dbPath)
	st := store.New(repo, clk, nil)
	alerter := &fakeAlerter{}
	opts := DefaultOptions()
	opts.ContextID = contextID
	return &harness{
		sched:   New(st, repo, alerter, clk, opts, nil),
		store:   st,
		repo:    repo,
		alerter: alerter,
		clock:   clk,
	}
}

func setupHarness(t *testing.T, start time.Time) *harness {
	t.Helper()
	return newHarness(t, filepath.Join(t.TempDir(), "scheduler-test.db"), "primary", clock.NewFake(start))
}

func (h *harness) create(t *testing.T, at string, days ...int) model.Alarm {
	t.Helper()
	in := model.NewAlarmInput("alarm "+at, model.MustClockTime(at))
	in.RepeatDays = model.Weekdays(days)
	a, err := h.store.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create alarm: %v", err)
	}
	return a
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	if err := h.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func drain(s *Scheduler) []Event {
	out := make([]Event, 0)
	for {
		select {
		case ev := <-s.C():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func TestOneShotEndToEnd(t *testing.T) {
	h := setupHarness(t, day(5, 29, 50))
	a := h.create(t, "05:30")

	h.tick(t)
	if h.sched.State().Kind != StateIdle {
		t.Fatalf("expected idle before 05:30, got %+v", h.sched.State())
	}

	h.clock.Advance(20 * time.Second)
	h.tick(t)
	st := h.sched.State()
	if st.Kind != StateRinging || st.AlarmID != a.ID || st.Key != model.KeyFor(a.ID, day(5, 30, 0)) {
		t.Fatalf("expected ringing for %s, got %+v", a.ID, st)
	}
	if h.alerter.ringCount() != 1 {
		t.Fatalf("expected one ring, got %d", h.alerter.ringCount())
	}

	if err := h.sched.Dismiss(context.Background()); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if h.sched.State().Kind != StateIdle {
		t.Fatalf("expected idle after dismiss, got %+v", h.sched.State())
	}
	got, _ := h.store.Get(context.Background(), a.ID)
	if got.Enabled {
		t.Fatal("expected one-shot disabled after dismiss")
	}
	armed, err := h.repo.ListArmed(context.Background())
	if err != nil {
		t.Fatalf("list armed: %v", err)
	}
	if len(armed) != 0 {
		t.Fatalf("expected no future occurrence armed, got %+v", armed)
	}

	for i := 0; i < 10; i++ {
		h.clock.Advance(20 * time.Second)
		h.tick(t)
	}
	if h.alerter.ringCount() != 1 {
		t.Fatalf("one-shot must not ring again, got %d", h.alerter.ringCount())
	}
	events := drain(h.sched)
	if countKind(events, EventRinging) != 1 || countKind(events, EventDismissed) != 1 {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestToleranceFiresSlightlyEarly(t *testing.T) {
	h := setupHarness(t, day(5, 29, 0))
	h.create(t, "05:30", 0, 1, 2, 3, 4, 5, 6)
	h.tick(t)

	h.clock.Set(day(5, 29, 58))
	h.tick(t)
	if h.sched.State().Kind != StateRinging {
		t.Fatal("expected ring within tolerance")
	}
	if err := h.sched.Dismiss(context.Background()); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	h.clock.Set(day(5, 30, 5))
	h.tick(t)
	if h.alerter.ringCount() != 1 {
		t.Fatalf("early dismiss must not re-fire the same instant, got %d rings", h.alerter.ringCount())
	}
}

func TestSnoozeRearmsAtNowPlusMinutes(t *testing.T) {
	h := setupHarness(t, day(5, 29, 55))
	a := h.create(t, "05:30", 1, 3, 5)
	h.tick(t)
	h.clock.Set(day(5, 30, 10))
	h.tick(t)
	first := h.sched.State()
	if first.Kind != StateRinging {
		t.Fatalf("expected ringing, got %+v", first)
	}

	if err := h.sched.Snooze(context.Background(), 5); err != nil {
		t.Fatalf("snooze: %v", err)
	}
	armed, err := h.repo.GetArmed(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get armed: %v", err)
	}
	if !armed.FireAt.Equal(day(5, 35, 10)) || armed.Kind != string(model.ArmSnoozed) {
		t.Fatalf("expected snoozed instant at 05:35:10, got %+v", armed)
	}

	for i := 0; i < 14; i++ {
		h.clock.Advance(20 * time.Second)
		h.tick(t)
		if h.sched.State().Kind != StateIdle {
			t.Fatalf("must stay idle while snoozed, at %s", h.clock.Now())
		}
	}
	h.clock.Set(day(5, 35, 10))
	h.tick(t)
	second := h.sched.State()
	if second.Kind != StateRinging || second.Key == first.Key {
		t.Fatalf("expected a fresh ring after snooze, got %+v (first %+v)", second, first)
	}
	if h.alerter.ringCount() != 2 {
		t.Fatalf("expected two rings, got %d", h.alerter.ringCount())
	}
}

func TestSnoozeDefaultsToAlarmMinutes(t *testing.T) {
	h := setupHarness(t, day(5, 29, 59))
	a := h.create(t, "05:30")
	if err := h.store.Update(context.Background(), a.ID, model.Patch{SnoozeMinutes: model.Ref(9)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	h.tick(t)
	if h.sched.State().Kind != StateRinging {
		t.Fatalf("expected ringing, got %+v", h.sched.State())
	}
	if err := h.sched.Snooze(context.Background(), 0); err != nil {
		t.Fatalf("snooze: %v", err)
	}
	armed, err := h.repo.GetArmed(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get armed: %v", err)
	}
	if !armed.FireAt.Equal(day(5, 38, 59)) {
		t.Fatalf("expected alarm's 9 minute snooze, got %s", armed.FireAt)
	}
}

func TestDismissedRepeatingNeverFiresTwice(t *testing.T) {
	h := setupHarness(t, day(5, 0, 0))
	a := h.create(t, "05:30", 0, 1, 2, 3, 4, 5, 6)
	h.tick(t)

	keys := map[model.TriggerKey]int{}
	for d := 0; d < 3; d++ {
		for step := 0; step < 180; step++ {
			h.clock.Advance(20 * time.Second)
			h.tick(t)
			if st := h.sched.State(); st.Kind == StateRinging {
				keys[st.Key]++
				if err := h.sched.Dismiss(context.Background()); err != nil {
					t.Fatalf("dismiss: %v", err)
				}
			}
		}
		h.clock.Set(h.clock.Now().Add(23 * time.Hour))
	}
	if len(keys) != 3 {
		t.Fatalf("expected one ring per day, got %v", keys)
	}
	for key, n := range keys {
		if n != 1 {
			t.Fatalf("key %s rang %d times", key, n)
		}
	}
	got, _ := h.store.Get(context.Background(), a.ID)
	if !got.Enabled {
		t.Fatal("repeating alarm must stay enabled")
	}
}

func TestSecondDueAlarmDeferredToNextTick(t *testing.T) {
	h := setupHarness(t, day(5, 29, 0))
	first := h.create(t, "05:30")
	second := h.create(t, "05:30")
	h.tick(t)
	h.clock.Set(day(5, 30, 0))
	h.tick(t)

	ringing := h.sched.State().AlarmID
	if ringing != first.ID && ringing != second.ID {
		t.Fatalf("expected one of the alarms ringing, got %+v", h.sched.State())
	}
	if h.alerter.ringCount() != 1 {
		t.Fatalf("only one alarm may ring at a time, got %d", h.alerter.ringCount())
	}
	if err := h.sched.Dismiss(context.Background()); err != nil {
		t.Fatalf("dismiss: %v", err)
	}

	h.clock.Advance(20 * time.Second)
	h.tick(t)
	st := h.sched.State()
	if st.Kind != StateRinging || st.AlarmID == ringing {
		t.Fatalf("expected the deferred alarm to ring next, got %+v", st)
	}
}

func TestCatchUpSameDay(t *testing.T) {
	h := setupHarness(t, day(5, 0, 0))
	a := h.create(t, "05:30")
	h.tick(t)

	h.clock.Set(day(9, 15, 0))
	h.tick(t)
	st := h.sched.State()
	if st.Kind != StateRinging || st.AlarmID != a.ID || !st.At.Equal(day(5, 30, 0)) {
		t.Fatalf("expected catch-up ring for the 05:30 instant, got %+v", st)
	}
}

func TestMissedOnEarlierDay(t *testing.T) {
	h := setupHarness(t, day(5, 0, 0))
	oneShot := h.create(t, "05:30")
	repeating := h.create(t, "06:00", 1, 2)
	h.tick(t)

	// Tuesday 07:00: Monday's instants were missed, Tuesday 06:00 is still today.
	h.clock.Set(time.Date(2026, 2, 10, 7, 0, 0, 0, time.UTC))
	h.tick(t)

	got, _ := h.store.Get(context.Background(), oneShot.ID)
	if got.Enabled {
		t.Fatal("expected missed one-shot disabled")
	}
	st := h.sched.State()
	if st.Kind != StateRinging || st.AlarmID != repeating.ID || !st.At.Equal(time.Date(2026, 2, 10, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected catch-up of today's occurrence, got %+v", st)
	}
	if countKind(drain(h.sched), EventMissed) != 2 {
		t.Fatal("expected both missed instants reported")
	}
}

func TestDisablingRingingAlarmSilences(t *testing.T) {
	h := setupHarness(t, day(5, 29, 59))
	a := h.create(t, "05:30", 1)
	h.tick(t)
	if h.sched.State().Kind != StateRinging {
		t.Fatal("expected ringing")
	}
	if err := h.store.Update(context.Background(), a.ID, model.Patch{Enabled: model.Ref(false)}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	h.tick(t)
	if h.sched.State().Kind != StateIdle || h.alerter.silences != 1 {
		t.Fatalf("expected silenced and idle, got %+v silences=%d", h.sched.State(), h.alerter.silences)
	}
}

func TestAudioFailureStillRings(t *testing.T) {
	h := setupHarness(t, day(5, 29, 59))
	h.alerter.err = errors.New("no audio device")
	h.create(t, "05:30")
	h.tick(t)
	if h.sched.State().Kind != StateRinging {
		t.Fatal("audio failure must not prevent ringing")
	}
	events := drain(h.sched)
	for _, ev := range events {
		if ev.Kind == EventRinging && ev.Err == nil {
			t.Fatal("expected ringing event to carry the audio error")
		}
	}
}

func TestDismissAndSnoozeRequireRinging(t *testing.T) {
	h := setupHarness(t, day(5, 0, 0))
	if err := h.sched.Dismiss(context.Background()); !errors.Is(err, ErrNotRinging) {
		t.Fatalf("expected ErrNotRinging, got %v", err)
	}
	if err := h.sched.Snooze(context.Background(), 5); !errors.Is(err, ErrNotRinging) {
		t.Fatalf("expected ErrNotRinging, got %v", err)
	}
}

func TestMutationInvalidatesArmedInstant(t *testing.T) {
	h := setupHarness(t, day(4, 0, 0))
	a := h.create(t, "05:30")
	h.tick(t)
	if _, err := h.repo.GetArmed(context.Background(), a.ID); err != nil {
		t.Fatalf("expected armed instant: %v", err)
	}

	if err := h.store.Update(context.Background(), a.ID, model.Patch{Time: model.Ref(model.MustClockTime("04:30"))}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := h.repo.GetArmed(context.Background(), a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected instant disarmed by mutation, got %v", err)
	}
	h.tick(t)
	armed, err := h.repo.GetArmed(context.Background(), a.ID)
	if err != nil || !armed.FireAt.Equal(day(4, 30, 0)) {
		t.Fatalf("expected re-armed at 04:30, got %+v %v", armed, err)
	}
	upcoming, err := h.sched.NextInstants(context.Background())
	if err != nil || len(upcoming) != 1 || upcoming[0].Alarm.ID != a.ID {
		t.Fatalf("unexpected upcoming list: %+v %v", upcoming, err)
	}
}

func TestResumeOwnClaimAfterRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "resume.db")
	clk := clock.NewFake(day(5, 29, 59))
	before := newHarness(t, dbPath, "laptop", clk)
	before.create(t, "05:30")
	before.tick(t)
	if before.sched.State().Kind != StateRinging {
		t.Fatal("expected ringing before restart")
	}

	clk.Advance(time.Minute)
	other := newHarness(t, dbPath, "phone", clk)
	other.tick(t)
	if other.sched.State().Kind != StateIdle {
		t.Fatal("a different context must not take over the claim")
	}

	after := newHarness(t, dbPath, "laptop", clk)
	after.tick(t)
	if after.sched.State().Kind != StateRinging {
		t.Fatal("expected the same context to resume ringing")
	}
}

func TestEditFromAnotherProcessRearms(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cross-process.db")
	clk := clock.NewFake(day(5, 29, 0))
	h := newHarness(t, dbPath, "primary", clk)
	a := h.create(t, "05:30")
	h.tick(t)
	armed, err := h.repo.GetArmed(context.Background(), a.ID)
	if err != nil || !armed.FireAt.Equal(day(5, 30, 0)) {
		t.Fatalf("expected 05:30 armed, got %+v %v", armed, err)
	}

	clk.Advance(10 * time.Second)
	cli := store.New(openRepo(t, dbPath), clk, nil)
	later := model.MustClockTime("07:00")
	if err := cli.Update(context.Background(), a.ID, model.Patch{Time: &later}); err != nil {
		t.Fatalf("update from second store: %v", err)
	}

	clk.Set(day(5, 30, 5))
	h.tick(t)
	if h.sched.State().Kind != StateIdle {
		t.Fatalf("expected idle at the old time, got %+v", h.sched.State())
	}
	armed, err = h.repo.GetArmed(context.Background(), a.ID)
	if err != nil || !armed.FireAt.Equal(day(7, 0, 0)) {
		t.Fatalf("expected re-armed at 07:00, got %+v %v", armed, err)
	}
	if h.alerter.ringCount() != 0 {
		t.Fatalf("expected no ring, got %d", h.alerter.ringCount())
	}
}

func TestConcurrentSchedulersWithSameContextRingOnce(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "same-context.db")
	clk := clock.NewFake(day(5, 29, 0))
	first := newHarness(t, dbPath, "primary", clk)
	second := newHarness(t, dbPath, "primary", clk)
	first.create(t, "05:30")
	first.tick(t)
	second.tick(t)

	clk.Set(day(5, 30, 5))
	first.tick(t)
	second.tick(t)
	if first.sched.State().Kind != StateRinging {
		t.Fatalf("expected first scheduler ringing, got %+v", first.sched.State())
	}
	if second.sched.State().Kind != StateIdle {
		t.Fatalf("a running scheduler with the same context must not ring the claimed instant, got %+v", second.sched.State())
	}
	if second.alerter.ringCount() != 0 {
		t.Fatalf("expected no ring from the second scheduler, got %d", second.alerter.ringCount())
	}
}

func TestTickForwardsToRelay(t *testing.T) {
	h := setupHarness(t, day(5, 0, 0))
	box := relay.NewMailbox(4)
	h.sched.AttachRelay(box)
	h.tick(t)
	select {
	case msg := <-box.C():
		if msg.Kind != relay.EvaluateDue || msg.From != "primary" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	default:
		t.Fatal("expected EvaluateDue forwarded to relay")
	}
}

func TestRunServesInboxAndPolls(t *testing.T) {
	h := setupHarness(t, day(5, 29, 0))
	h.create(t, "05:30")
	h.sched.Start(context.Background())
	defer h.sched.Stop()

	if !h.clock.BlockUntil(1, 2*time.Second) {
		t.Fatal("run loop never armed its poll timer")
	}
	h.sched.Inbox().Send(relay.Message{Kind: relay.EvaluateDue, From: "relay"})
	waitFor(t, h.sched.C(), EventFocus)

	for i := 0; i < 3; i++ {
		if !h.clock.BlockUntil(1, 2*time.Second) {
			t.Fatal("run loop did not re-arm its poll timer")
		}
		h.clock.Advance(DefaultOptions().PollInterval)
	}
	waitFor(t, h.sched.C(), EventRinging)
}

func waitFor(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", kind)
			return Event{}
		}
	}
}
