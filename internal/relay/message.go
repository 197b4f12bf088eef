package relay

import (
	"sync/atomic"
	"time"
)

type Kind string

// EvaluateDue asks the receiver to look at due alarms now. It is the only
// message exchanged between contexts.
const EvaluateDue Kind = "evaluate_due"

type Message struct {
	Kind Kind
	From string
	At   time.Time
}

// Sender accepts messages without blocking.
type Sender interface {
	Send(msg Message) bool
}

// Mailbox is a bounded inbox. Send never blocks; a full mailbox drops the
// message and counts it.
type Mailbox struct {
	ch      chan Message
	dropped uint64
}

func NewMailbox(size int) *Mailbox {
	if size <= 0 {
		size = 1
	}
	return &Mailbox{ch: make(chan Message, size)}
}

func (m *Mailbox) Send(msg Message) bool {
	select {
	case m.ch <- msg:
		return true
	default:
		atomic.AddUint64(&m.dropped, 1)
		return false
	}
}

func (m *Mailbox) C() <-chan Message {
	return m.ch
}

func (m *Mailbox) Dropped() uint64 {
	return atomic.LoadUint64(&m.dropped)
}
