package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/relay"
	"github.com/sandeepkv93/vigil/internal/storage"
)

var ErrNotRinging = errors.New("scheduler: no alarm is ringing")

// Alarms is the alarm store as seen by the scheduler.
type Alarms interface {
	GetAll(ctx context.Context) []model.Alarm
	Get(ctx context.Context, id string) (model.Alarm, bool)
	Update(ctx context.Context, id string, patch model.Patch) error
	OnChange(fn func(id string))
}

// Ledger persists armed instants and trigger claims.
type Ledger interface {
	ArmInstant(ctx context.Context, in storage.ArmedInstant) error
	DisarmInstant(ctx context.Context, alarmID string) error
	ListArmed(ctx context.Context) ([]storage.ArmedInstant, error)
	ClaimTrigger(ctx context.Context, in storage.TriggerClaim) (storage.TriggerClaim, bool, error)
	PruneClaims(ctx context.Context, before time.Time) (int64, error)
}

// Alerter sounds a ringing alarm.
type Alerter interface {
	Ring(ctx context.Context, alarm model.Alarm) error
	Silence()
}

type Options struct {
	// ContextID identifies this scheduler as a claim owner.
	ContextID    string
	PollInterval time.Duration
	// Tolerance lets an instant fire slightly before its time.
	Tolerance   time.Duration
	EventBuffer int
	ClaimTTL    time.Duration
	Mailbox     int
}

func DefaultOptions() Options {
	return Options{
		ContextID:    "primary",
		PollInterval: 20 * time.Second,
		Tolerance:    2 * time.Second,
		EventBuffer:  64,
		ClaimTTL:     7 * 24 * time.Hour,
		Mailbox:      16,
	}
}

type StateKind string

const (
	StateIdle    StateKind = "idle"
	StateRinging StateKind = "ringing"
)

type State struct {
	Kind    StateKind
	AlarmID string
	Label   string
	Key     model.TriggerKey
	At      time.Time
	Since   time.Time
}

// Scheduler decides, once per scheduled instant, which alarm rings. At most
// one alarm rings at a time.
type Scheduler struct {
	alarms  Alarms
	ledger  Ledger
	alerter Alerter
	clock   clock.Clock
	opts    Options
	logger  *slog.Logger

	mu    sync.Mutex
	state State
	// bootedAt separates claims of an earlier run of this context from
	// claims of a concurrent one.
	bootedAt time.Time

	out     chan Event
	dropped uint64
	inbox   *relay.Mailbox

	relayMu sync.Mutex
	relay   relay.Sender

	lifeMu  sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
}

func New(alarms Alarms, ledger Ledger, alerter Alerter, clk clock.Clock, opts Options, logger *slog.Logger) *Scheduler {
	defaults := DefaultOptions()
	if opts.ContextID == "" {
		opts.ContextID = defaults.ContextID
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 1
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = defaults.ClaimTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}
	s := &Scheduler{
		alarms:   alarms,
		ledger:   ledger,
		alerter:  alerter,
		clock:    clk,
		opts:     opts,
		logger:   logging.OrDiscard(logger).With("context", opts.ContextID),
		state:    State{Kind: StateIdle},
		bootedAt: clk.Now(),
		out:      make(chan Event, opts.EventBuffer),
		inbox:    relay.NewMailbox(opts.Mailbox),
		doneCh:   make(chan struct{}),
	}
	alarms.OnChange(s.invalidate)
	return s
}

// invalidate drops the cached instant of a mutated alarm. It runs on the
// mutating goroutine and only touches the ledger.
func (s *Scheduler) invalidate(id string) {
	if err := s.ledger.DisarmInstant(context.Background(), id); err != nil {
		s.logger.Error("disarm after change failed", "alarm_id", id, logging.Err(err))
	}
}

// Inbox receives messages from the relay.
func (s *Scheduler) Inbox() *relay.Mailbox {
	return s.inbox
}

// AttachRelay sets where EvaluateDue is forwarded after every tick.
func (s *Scheduler) AttachRelay(r relay.Sender) {
	s.relayMu.Lock()
	defer s.relayMu.Unlock()
	s.relay = r
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) ContextID() string {
	return s.opts.ContextID
}

func (s *Scheduler) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.started {
		return
	}
	s.started = true
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		defer close(s.doneCh)
		_ = s.Run(runCtx)
	}()
}

func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	if !s.started || s.stopped {
		s.lifeMu.Unlock()
		return
	}
	s.stopped = true
	s.cancel()
	s.lifeMu.Unlock()
	<-s.doneCh
}

// Run ticks every PollInterval and on each EvaluateDue message until ctx is
// done. Claims older than ClaimTTL are pruned first.
func (s *Scheduler) Run(ctx context.Context) error {
	s.prune(ctx)
	s.tickLogged(ctx)

	wait := s.clock.After(s.opts.PollInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wait:
			s.tickLogged(ctx)
			wait = s.clock.After(s.opts.PollInterval)
		case msg := <-s.inbox.C():
			if msg.Kind != relay.EvaluateDue {
				continue
			}
			s.logger.Debug("evaluate requested", "from", msg.From)
			s.tickLogged(ctx)
			s.emit(Event{Kind: EventFocus, At: s.clock.Now()})
		}
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	cutoff := s.clock.Now().Add(-s.opts.ClaimTTL)
	removed, err := s.ledger.PruneClaims(ctx, cutoff)
	if err != nil {
		s.logger.Warn("prune claims failed", logging.Err(err))
		return
	}
	if removed > 0 {
		s.logger.Info("pruned trigger claims", "count", removed)
	}
}

func (s *Scheduler) tickLogged(ctx context.Context) {
	if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("tick failed", logging.Err(err))
	}
}

// Tick runs one evaluation pass and forwards EvaluateDue to the relay.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.mu.Lock()
	err := s.tickLocked(ctx)
	s.mu.Unlock()
	s.forward()
	return err
}

func (s *Scheduler) forward() {
	s.relayMu.Lock()
	r := s.relay
	s.relayMu.Unlock()
	if r == nil {
		return
	}
	r.Send(relay.Message{Kind: relay.EvaluateDue, From: s.opts.ContextID, At: s.clock.Now()})
}

func (s *Scheduler) tickLocked(ctx context.Context) error {
	now := s.clock.Now()
	loc := now.Location()

	alarms := s.alarms.GetAll(ctx)
	byID := make(map[string]model.Alarm, len(alarms))
	for _, a := range alarms {
		byID[a.ID] = a
	}

	if s.state.Kind == StateRinging {
		a, ok := byID[s.state.AlarmID]
		if ok && a.Enabled {
			return nil
		}
		s.logger.Info("ringing alarm removed or disabled; silencing", "alarm_id", s.state.AlarmID)
		s.alerter.Silence()
		s.emit(Event{Kind: EventSilenced, AlarmID: s.state.AlarmID, Label: s.state.Label, Key: s.state.Key, At: now})
		s.state = State{Kind: StateIdle}
	}

	rows, err := s.ledger.ListArmed(ctx)
	if err != nil {
		return fmt.Errorf("list armed: %w", err)
	}
	armed := make(map[string]storage.ArmedInstant, len(rows))
	for _, row := range rows {
		armed[row.AlarmID] = row
	}

	sort.Slice(alarms, func(i, j int) bool { return alarms[i].ID < alarms[j].ID })
	due := make(dueQueue, 0)
	for _, a := range alarms {
		inst, ok := armed[a.ID]
		if !a.Enabled {
			if ok {
				_ = s.ledger.DisarmInstant(ctx, a.ID)
			}
			continue
		}
		// Writers in other processes cannot reach OnChange; an instant armed
		// before the last edit is stale.
		if ok && inst.ArmedAt.Before(a.UpdatedAt) {
			s.logger.Debug("armed instant predates alarm edit; recomputing", "alarm_id", a.ID)
			if err := s.ledger.DisarmInstant(ctx, a.ID); err != nil {
				s.logger.Error("disarm stale instant failed", "alarm_id", a.ID, logging.Err(err))
				continue
			}
			ok = false
		}
		if !ok {
			next := model.NextFire(a, now)
			if err := s.arm(ctx, a.ID, next, model.ArmScheduled, now); err != nil {
				s.logger.Error("arm failed", "alarm_id", a.ID, logging.Err(err))
				continue
			}
			s.emit(Event{Kind: EventArmed, AlarmID: a.ID, Label: a.Label, At: next})
			inst = storage.ArmedInstant{AlarmID: a.ID, FireAt: next, Kind: string(model.ArmScheduled)}
		}

		at := inst.FireAt.In(loc)
		kind := model.ArmKind(inst.Kind)
		if classify(at, now, s.opts.Tolerance) == classExpired {
			next, rearmed := s.missed(ctx, a, at, now)
			if !rearmed {
				continue
			}
			at, kind = next, model.ArmScheduled
		}
		if classify(at, now, s.opts.Tolerance) == classDue {
			heap.Push(&due, dueItem{alarm: a, at: at, kind: kind})
		}
	}

	for due.Len() > 0 {
		item := heap.Pop(&due).(dueItem)
		if s.claim(ctx, item, now) {
			return nil
		}
	}
	return nil
}

// claim tries to consume the instant's key and rings on success. A key
// this context claimed before the scheduler was created resumes the ring
// interrupted by a restart. A same-id claim made since then belongs to a
// concurrent scheduler and is left alone.
func (s *Scheduler) claim(ctx context.Context, item dueItem, now time.Time) bool {
	key := model.KeyFor(item.alarm.ID, item.at)
	got, won, err := s.ledger.ClaimTrigger(ctx, storage.TriggerClaim{
		Key:       string(key),
		AlarmID:   item.alarm.ID,
		Owner:     s.opts.ContextID,
		ClaimedAt: now,
	})
	if err != nil {
		s.logger.Error("claim failed", "key", key, logging.Err(err))
		return false
	}
	if !won && (got.Owner != s.opts.ContextID || !got.ClaimedAt.Before(s.bootedAt)) {
		s.logger.Debug("trigger already consumed", "key", key, "owner", got.Owner, "claimed_at", got.ClaimedAt)
		return false
	}
	if !won {
		s.logger.Info("resuming ring after restart", "key", key)
	}

	s.state = State{
		Kind:    StateRinging,
		AlarmID: item.alarm.ID,
		Label:   item.alarm.Label,
		Key:     key,
		At:      item.at,
		Since:   now,
	}
	var ringErr error
	if err := s.alerter.Ring(ctx, item.alarm); err != nil {
		ringErr = err
		s.logger.Error("alarm ringing without sound", "alarm_id", item.alarm.ID, logging.Err(err))
	}
	s.logger.Info("alarm ringing", "alarm_id", item.alarm.ID, "key", key, "kind", item.kind)
	s.emit(Event{Kind: EventRinging, AlarmID: item.alarm.ID, Label: item.alarm.Label, Key: key, At: item.at, Err: ringErr})
	return true
}

// missed handles an instant from an earlier day. One-shots are disabled.
// Repeating alarms are re-armed at their first occurrence today or later, so
// an occurrence earlier today is still caught up.
func (s *Scheduler) missed(ctx context.Context, a model.Alarm, at, now time.Time) (time.Time, bool) {
	s.logger.Warn("missed alarm", "alarm_id", a.ID, "at", at)
	s.emit(Event{Kind: EventMissed, AlarmID: a.ID, Label: a.Label, At: at})
	if a.OneShot() {
		if err := s.alarms.Update(ctx, a.ID, model.Patch{Enabled: model.Ref(false)}); err != nil {
			s.logger.Error("disable missed one-shot failed", "alarm_id", a.ID, logging.Err(err))
		}
		_ = s.ledger.DisarmInstant(ctx, a.ID)
		return time.Time{}, false
	}
	y, m, d := now.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	next := model.NextFire(a, startOfDay.Add(-time.Nanosecond))
	if err := s.arm(ctx, a.ID, next, model.ArmScheduled, now); err != nil {
		s.logger.Error("rearm missed alarm failed", "alarm_id", a.ID, logging.Err(err))
		return time.Time{}, false
	}
	s.emit(Event{Kind: EventArmed, AlarmID: a.ID, Label: a.Label, At: next})
	return next, true
}

func (s *Scheduler) arm(ctx context.Context, alarmID string, at time.Time, kind model.ArmKind, now time.Time) error {
	return s.ledger.ArmInstant(ctx, storage.ArmedInstant{
		AlarmID: alarmID,
		FireAt:  at,
		Kind:    string(kind),
		ArmedAt: now,
	})
}

// Dismiss silences the ringing alarm and arms its following occurrence.
// One-shot alarms are disabled instead.
func (s *Scheduler) Dismiss(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Kind != StateRinging {
		return ErrNotRinging
	}
	st := s.state
	s.alerter.Silence()
	now := s.clock.Now()

	if err := s.ledger.DisarmInstant(ctx, st.AlarmID); err != nil {
		s.logger.Error("disarm on dismiss failed", "alarm_id", st.AlarmID, logging.Err(err))
	}
	a, ok := s.alarms.Get(ctx, st.AlarmID)
	switch {
	case !ok:
	case a.OneShot():
		if err := s.alarms.Update(ctx, a.ID, model.Patch{Enabled: model.Ref(false)}); err != nil {
			s.logger.Error("disable one-shot failed", "alarm_id", a.ID, logging.Err(err))
		}
	case a.Enabled:
		from := now
		if st.At.After(from) {
			from = st.At
		}
		next := model.NextFire(a, from)
		if err := s.arm(ctx, a.ID, next, model.ArmScheduled, now); err != nil {
			s.logger.Error("rearm on dismiss failed", "alarm_id", a.ID, logging.Err(err))
		} else {
			s.emit(Event{Kind: EventArmed, AlarmID: a.ID, Label: a.Label, At: next})
		}
	}

	s.state = State{Kind: StateIdle}
	s.logger.Info("alarm dismissed", "alarm_id", st.AlarmID, "key", st.Key)
	s.emit(Event{Kind: EventDismissed, AlarmID: st.AlarmID, Label: st.Label, Key: st.Key, At: now})
	return nil
}

// Snooze silences the ringing alarm and arms it minutes from now. Zero or
// negative minutes use the alarm's own snooze length.
func (s *Scheduler) Snooze(ctx context.Context, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Kind != StateRinging {
		return ErrNotRinging
	}
	st := s.state
	s.alerter.Silence()
	now := s.clock.Now()

	if minutes <= 0 {
		minutes = model.DefaultSnoozeMinutes
		if a, ok := s.alarms.Get(ctx, st.AlarmID); ok {
			minutes = a.SnoozeMinutes
		}
	}
	at := now.Add(time.Duration(minutes) * time.Minute)
	if err := s.arm(ctx, st.AlarmID, at, model.ArmSnoozed, now); err != nil {
		s.logger.Error("arm snooze failed", "alarm_id", st.AlarmID, logging.Err(err))
	}

	s.state = State{Kind: StateIdle}
	s.logger.Info("alarm snoozed", "alarm_id", st.AlarmID, "until", at)
	s.emit(Event{Kind: EventSnoozed, AlarmID: st.AlarmID, Label: st.Label, Key: st.Key, At: at})
	return nil
}

// Upcoming is one armed instant joined with its alarm.
type Upcoming struct {
	Alarm model.Alarm
	At    time.Time
	Kind  model.ArmKind
}

// NextInstants lists armed instants of enabled alarms, soonest first.
func (s *Scheduler) NextInstants(ctx context.Context) ([]Upcoming, error) {
	rows, err := s.ledger.ListArmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list armed: %w", err)
	}
	loc := s.clock.Now().Location()
	out := make([]Upcoming, 0, len(rows))
	for _, row := range rows {
		a, ok := s.alarms.Get(ctx, row.AlarmID)
		if !ok || !a.Enabled {
			continue
		}
		out = append(out, Upcoming{Alarm: a, At: row.FireAt.In(loc), Kind: model.ArmKind(row.Kind)})
	}
	return out, nil
}
