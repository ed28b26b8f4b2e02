package pubsuber

import (
	"runtime"
	"sync"
	"time"

	"github.com/sandvikcode/pubsuber-go/internal/engine"
)

// doner is the subset of Subscription a Message needs to complete
// itself. Keeping it as an interface lets message_test.go substitute a
// fake without spinning up an Executor.
type doner interface {
	done(ackID string, receiveTime time.Time, action engine.DoneAction)
}

// Message is one delivery from a subscription. Exactly one of Ack or
// Nack must be called; calling neither leaks the ack deadline
// extension until the message is garbage collected, at which point the
// finalizer nacks it on the caller's behalf.
//
// Message is not safe to retain past the callback that received it
// without also retaining a reference that keeps it from being
// collected prematurely — though since Ack/Nack are idempotent-safe
// via the done flag, an early GC only risks an extra, harmless Nack.
type Message struct {
	Data             []byte
	Attributes       map[string]string
	SubscriptionName string
	ReceiveTime      time.Time

	sub   doner
	ackID string

	mu   sync.Mutex
	done bool
}

func newMessage(raw engine.RawMessage, sub doner) *Message {
	m := &Message{
		Data:             raw.Data,
		Attributes:       raw.Attributes,
		SubscriptionName: raw.SubscriptionName,
		ReceiveTime:      raw.ReceiveTime,
		sub:              sub,
		ackID:            raw.AckID,
	}
	// A Message dropped by user code without an explicit Ack/Nack
	// would otherwise keep extending its deadline forever. The
	// finalizer treats an un-acked, garbage-collected Message the
	// same as an explicit Nack.
	runtime.SetFinalizer(m, (*Message).finalize)
	return m
}

// Ack acknowledges successful processing. Safe to call from any
// goroutine; a second call (from either Ack or Nack) is a no-op.
func (m *Message) Ack() {
	m.complete(engine.Ack)
}

// Nack signals that processing failed and the message should be
// redelivered. Safe to call from any goroutine.
func (m *Message) Nack() {
	m.complete(engine.Nack)
}

func (m *Message) complete(action engine.DoneAction) {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	m.mu.Unlock()

	runtime.SetFinalizer(m, nil)
	m.sub.done(m.ackID, m.ReceiveTime, action)
}

func (m *Message) finalize() {
	m.complete(engine.Nack)
}
