package engine

import (
	"sync"
	"time"

	"github.com/sandvikcode/pubsuber-go/internal/distribution"
	"github.com/sandvikcode/pubsuber-go/internal/retry"
)

// soLong stands in for "no sleep requested" when a subscription has
// nothing pending to extend.
const soLong = 365 * 24 * time.Hour

// DoneAction tells ackState.done which pending set an ackId moves to.
type DoneAction int

const (
	Ack DoneAction = iota
	Nack
)

// ackState is the per-subscription state shared between the pull loop
// and the ack loop, and the sole sender of Acknowledge/
// ModifyAckDeadline RPCs for its subscription. It is the Go
// equivalent of the original's ModAckIterator.
type ackState struct {
	subscriptionName string
	gracePeriod      time.Duration
	policies         retry.Policies

	ackDist *distribution.Histogram

	mu          sync.Mutex // guards input, pendingAck, pendingNack
	input       watchMap
	pendingAck  ackSet
	pendingNack ackSet

	// keepAlive is touched only by the ack loop goroutine; no lock
	// needed.
	keepAlive watchMap
}

func newAckState(subscriptionName string, policies retry.Policies) *ackState {
	return &ackState{
		subscriptionName: subscriptionName,
		gracePeriod:      gracePeriodConst,
		policies:         policies,
		ackDist:          distribution.New(int(maxAckDeadlineConst / time.Second)),
		input:            make(watchMap),
		pendingAck:       make(ackSet),
		pendingNack:      make(ackSet),
		keepAlive:        make(watchMap),
	}
}

// addDeadlineWatcher records a newly pulled message's initial
// deadline. Called from the pull loop.
func (s *ackState) addDeadlineWatcher(ackID string, nextAck time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input[ackID] = &ackWatch{nextAck: nextAck}
}

// done records the handling latency and moves ackID into the
// appropriate pending set. Called from Message.Ack/Nack on any
// goroutine.
func (s *ackState) done(ackID string, receiveTime time.Time, action DoneAction) {
	elapsed := int(time.Since(receiveTime) / time.Second)
	s.ackDist.Record(elapsed)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch action {
	case Ack:
		delete(s.pendingNack, ackID)
		s.pendingAck[ackID] = struct{}{}
	case Nack:
		delete(s.pendingAck, ackID)
		s.pendingNack[ackID] = struct{}{}
	}
}

// inputCountLocked and keepAliveCount report queue depths for the ack
// loop's wait/metrics decisions. inputCountLocked must be called with mu
// held by the caller (the ack loop computes it alongside other
// subscriptions' counts under the same critical section).
func (s *ackState) inputCountLocked() int { return len(s.input) }
func (s *ackState) keepAliveCount() int   { return len(s.keepAlive) }

func (s *ackState) lock()   { s.mu.Lock() }
func (s *ackState) unlock() { s.mu.Unlock() }

// mergeInputLocked merges input into keepAlive and swaps out the
// pending sets, returning them for processing outside the lock. The
// caller must hold s.mu.
func (s *ackState) mergeInputLocked() (pendingAck, pendingNack ackSet) {
	for id, w := range s.input {
		s.keepAlive[id] = w
	}
	s.input = make(watchMap)

	pendingAck, s.pendingAck = s.pendingAck, make(ackSet)
	pendingNack, s.pendingNack = s.pendingNack, make(ackSet)
	return pendingAck, pendingNack
}

// ackDeadline returns the adaptive deadline: the 99th percentile of
// observed handling latency, clamped to [minAckDeadline, maxAckDeadline].
func (s *ackState) ackDeadline() time.Duration {
	p99 := time.Duration(s.ackDist.Percentile(0.99)) * time.Second
	if p99 < minAckDeadlineConst {
		return minAckDeadlineConst
	}
	if p99 > maxAckDeadlineConst {
		return maxAckDeadlineConst
	}
	return p99
}

// These mirror the unexported constants in the root package; engine
// cannot import it (the root package imports engine), so the values
// are restated here, matching the originals exactly.
const (
	minAckDeadlineConst = 10 * time.Second
	maxAckDeadlineConst = 600 * time.Second
	gracePeriodConst    = minAckDeadlineConst / 2
)
