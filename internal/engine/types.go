// Package engine implements the pull loop and ack loop: the two
// background goroutines that together make up a subscription
// receiver.
package engine

import "time"

// ackWatch is the deadline at which the broker will redeliver a
// message unless its deadline is extended. The invariant is
// nextAck.After(now) while the message is kept alive.
type ackWatch struct {
	nextAck time.Time
}

// extendIn reports how long until this watch's deadline, relative to
// now. A watch whose extendIn falls below the grace period is
// eligible for extension.
func (w *ackWatch) extendIn(now time.Time) time.Duration {
	return w.nextAck.Sub(now)
}

// watchMap is the Go equivalent of the original's WatchDescrContainer:
// a map from ackId to its keep-alive watch.
type watchMap map[string]*ackWatch

// ackSet is a plain set of ackIds, used for pendingAck/pendingNack.
type ackSet map[string]struct{}

func newAckSet(ids ...string) ackSet {
	s := make(ackSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// ackEntry pairs an ackId with its watch. It is the Go structural
// equivalent of the original's AckIDPack tuple, used by the
// pack-set batch-splitting variant that must update nextAck in place
// after a successful extension.
type ackEntry struct {
	id    string
	watch *ackWatch
}
