package relay

import (
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
)

type Options struct {
	ContextID string
	// WakeInterval is the coarse periodic wake-up used when nothing else
	// prompts an evaluation.
	WakeInterval time.Duration
	Tolerance    time.Duration
	Mailbox      int
}

func DefaultOptions() Options {
	return Options{
		ContextID:    "relay",
		WakeInterval: 5 * time.Minute,
		Tolerance:    2 * time.Second,
		Mailbox:      16,
	}
}

// Relay watches for due, unclaimed instants it cannot ring itself and raises
// a notification for each. It never writes to the store.
type Relay struct {
	source   DueSource
	notifier Notifier
	clock    clock.Clock
	opts     Options
	logger   *slog.Logger
	inbox    *Mailbox

	mu       sync.Mutex
	primary  Sender
	notified map[model.TriggerKey]time.Time
	degraded bool
}

func New(source DueSource, notifier Notifier, clk clock.Clock, opts Options, logger *slog.Logger) *Relay {
	defaults := DefaultOptions()
	if opts.ContextID == "" {
		opts.ContextID = defaults.ContextID
	}
	if opts.WakeInterval <= 0 {
		opts.WakeInterval = defaults.WakeInterval
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Relay{
		source:   source,
		notifier: notifier,
		clock:    clk,
		opts:     opts,
		logger:   logging.OrDiscard(logger).With("context", opts.ContextID),
		inbox:    NewMailbox(opts.Mailbox),
		notified: make(map[model.TriggerKey]time.Time),
	}
}

func (r *Relay) Inbox() *Mailbox {
	return r.inbox
}

// AttachPrimary sets where notification interactions are forwarded.
func (r *Relay) AttachPrimary(s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = s
}

// Degraded reports whether notifications were refused by the platform.
func (r *Relay) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

// Run evaluates on every EvaluateDue message and every WakeInterval until
// ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	r.evaluateLogged(ctx)

	interactions := r.notifier.Interactions()
	wake := r.clock.After(r.opts.WakeInterval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-wake:
			r.evaluateLogged(ctx)
			wake = r.clock.After(r.opts.WakeInterval)
		case msg := <-r.inbox.C():
			if msg.Kind != EvaluateDue {
				continue
			}
			r.evaluateLogged(ctx)
		case in, ok := <-interactions:
			if !ok {
				interactions = nil
				continue
			}
			r.logger.Info("notification opened", "alarm_id", in.AlarmID, "key", in.Key, "action", in.Action)
			r.forward()
		}
	}
}

func (r *Relay) forward() {
	r.mu.Lock()
	primary := r.primary
	r.mu.Unlock()
	if primary == nil {
		return
	}
	if !primary.Send(Message{Kind: EvaluateDue, From: r.opts.ContextID, At: r.clock.Now()}) {
		r.logger.Warn("primary mailbox full; interaction dropped")
	}
}

func (r *Relay) evaluateLogged(ctx context.Context) {
	if _, err := r.Evaluate(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("evaluate failed", logging.Err(err))
	}
}

// Evaluate notifies every due, same-day, unclaimed instant not notified
// before and returns how many notifications were raised.
func (r *Relay) Evaluate(ctx context.Context) (int, error) {
	now := r.clock.Now()
	loc := now.Location()
	r.forget(now)

	armed, err := r.source.ListArmed(ctx)
	if err != nil {
		return 0, fmt.Errorf("list armed: %w", err)
	}
	sort.Slice(armed, func(i, j int) bool {
		if armed[i].At.Equal(armed[j].At) {
			return armed[i].AlarmID < armed[j].AlarmID
		}
		return armed[i].At.Before(armed[j].At)
	})

	sent := 0
	for _, inst := range armed {
		at := inst.At.In(loc)
		if at.After(now.Add(r.opts.Tolerance)) || !model.SameDay(at, now) {
			continue
		}
		key := inst.Key(loc)
		if r.seen(key) {
			continue
		}
		claimed, err := r.source.IsClaimed(ctx, key)
		if err != nil {
			r.logger.Warn("claim lookup failed", "key", key, logging.Err(err))
			continue
		}
		if claimed {
			continue
		}
		alarm, ok := r.source.GetAlarm(ctx, inst.AlarmID)
		if !ok || !alarm.Enabled {
			continue
		}
		if r.notify(ctx, alarm, key, at) {
			sent++
		}
	}
	return sent, nil
}

func (r *Relay) notify(ctx context.Context, alarm model.Alarm, key model.TriggerKey, at time.Time) bool {
	r.mu.Lock()
	if r.degraded {
		r.mu.Unlock()
		return false
	}
	r.notified[key] = at
	r.mu.Unlock()

	err := r.notifier.Notify(ctx, Notification{
		AlarmID: alarm.ID,
		Key:     key,
		Title:   notificationTitle(alarm),
		Body:    fmt.Sprintf("Alarm at %s. Open vigil to dismiss or snooze.", alarm.Time),
		At:      at,
	})
	switch {
	case err == nil:
		r.logger.Info("notified", "alarm_id", alarm.ID, "key", key)
		return true
	case errors.Is(err, ErrPermissionDenied):
		r.mu.Lock()
		r.degraded = true
		r.mu.Unlock()
		r.logger.Warn("notifications unavailable; relay degraded", logging.Err(err))
	default:
		r.logger.Error("notify failed", "alarm_id", alarm.ID, "key", key, logging.Err(err))
	}
	return false
}

func (r *Relay) seen(key model.TriggerKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.notified[key]
	return ok
}

// forget drops dedupe entries from earlier days. Those instants can no
// longer be due.
func (r *Relay) forget(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, at := range r.notified {
		if !model.SameDay(at, now) {
			delete(r.notified, key)
		}
	}
}

func notificationTitle(a model.Alarm) string {
	if a.Label == "" {
		return "vigil: " + a.Time.String()
	}
	return "vigil: " + a.Label
}
