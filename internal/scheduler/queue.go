package scheduler

import (
	"time"

	"github.com/sandeepkv93/vigil/internal/model"
)

type dueItem struct {
	alarm model.Alarm
	at    time.Time
	kind  model.ArmKind
}

// dueQueue orders due instants by fire time, then alarm id.
type dueQueue []dueItem

func (q dueQueue) Len() int { return len(q) }

func (q dueQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].alarm.ID < q[j].alarm.ID
	}
	return q[i].at.Before(q[j].at)
}

func (q dueQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *dueQueue) Push(x any) {
	*q = append(*q, x.(dueItem))
}

func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[0 : n-1]
	return item
}

type instantClass int

const (
	classFuture instantClass = iota
	classDue
	classExpired
)

// classify places an armed instant relative to now. Due instants must fall
// on now's calendar day; anything earlier than today was missed.
func classify(at, now time.Time, tolerance time.Duration) instantClass {
	if at.After(now.Add(tolerance)) {
		return classFuture
	}
	if model.SameDay(at, now) {
		return classDue
	}
	if at.After(now) {
		return classFuture
	}
	return classExpired
}
