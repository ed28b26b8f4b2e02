package engine

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sandvikcode/pubsuber-go/internal/retry"
)

func testPolicies() retry.Policies {
	return retry.Policies{
		Count:   retry.CountPolicy{Count: 3},
		Time:    retry.TimePolicy{Interval: time.Second},
		Backoff: retry.BackoffPolicy{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Scale: 1},
	}
}

func TestAckDeadlineClampsToMin(t *testing.T) {
	c := qt.New(t)
	s := newAckState("sub", testPolicies())
	c.Assert(s.ackDeadline(), qt.Equals, minAckDeadlineConst)
}

func TestAckDeadlineClampsToMax(t *testing.T) {
	c := qt.New(t)
	s := newAckState("sub", testPolicies())
	for i := 0; i < 10; i++ {
		s.ackDist.Record(int(maxAckDeadlineConst / time.Second))
	}
	c.Assert(s.ackDeadline(), qt.Equals, maxAckDeadlineConst)
}

func TestDoneMovesIDBetweenPendingSets(t *testing.T) {
	c := qt.New(t)
	s := newAckState("sub", testPolicies())
	now := time.Now()

	s.done("id1", now, Nack)
	c.Assert(s.pendingNack, qt.HasLen, 1)
	c.Assert(s.pendingAck, qt.HasLen, 0)

	// Acking the same id afterward must move it, not duplicate it.
	s.done("id1", now, Ack)
	c.Assert(s.pendingAck, qt.HasLen, 1)
	c.Assert(s.pendingNack, qt.HasLen, 0)
}

func TestMergeInputLocked(t *testing.T) {
	c := qt.New(t)
	s := newAckState("sub", testPolicies())
	nextAck := time.Now().Add(time.Minute)

	s.addDeadlineWatcher("a", nextAck)
	s.addDeadlineWatcher("b", nextAck)
	s.done("a", time.Now(), Ack)

	s.lock()
	pendingAck, pendingNack := s.mergeInputLocked()
	s.unlock()

	c.Assert(s.keepAlive, qt.HasLen, 2)
	c.Assert(pendingAck, qt.HasLen, 1)
	c.Assert(pendingNack, qt.HasLen, 0)
	_, ok := pendingAck["a"]
	c.Assert(ok, qt.IsTrue)

	// A second merge with nothing new pending must report empty sets,
	// not resurrect the previous ones.
	s.lock()
	pendingAck2, pendingNack2 := s.mergeInputLocked()
	s.unlock()
	c.Assert(pendingAck2, qt.HasLen, 0)
	c.Assert(pendingNack2, qt.HasLen, 0)
}

func TestKeepAliveCountAndInputCount(t *testing.T) {
	c := qt.New(t)
	s := newAckState("sub", testPolicies())
	s.addDeadlineWatcher("a", time.Now())

	s.lock()
	c.Assert(s.inputCountLocked(), qt.Equals, 1)
	s.unlock()
	c.Assert(s.keepAliveCount(), qt.Equals, 0)

	s.lock()
	s.mergeInputLocked()
	s.unlock()
	c.Assert(s.keepAliveCount(), qt.Equals, 1)
}
