package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/sandeepkv93/vigil/internal/model"
)

type EventKind string

const (
	EventArmed     EventKind = "armed"
	EventRinging   EventKind = "ringing"
	EventDismissed EventKind = "dismissed"
	EventSnoozed   EventKind = "snoozed"
	EventMissed    EventKind = "missed"
	EventSilenced  EventKind = "silenced"
	EventFocus     EventKind = "focus"
)

type Event struct {
	Kind    EventKind
	AlarmID string
	Label   string
	Key     model.TriggerKey
	At      time.Time
	Err     error
}

func (s *Scheduler) C() <-chan Event {
	return s.out
}

// Dropped counts events discarded because the consumer fell behind.
func (s *Scheduler) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

func (s *Scheduler) emit(ev Event) {
	select {
	case s.out <- ev:
	default:
		atomic.AddUint64(&s.dropped, 1)
	}
}
