package engine

import (
	"context"
	"time"

	"github.com/sandvikcode/pubsuber-go/internal/retry"
	pubsubpb "google.golang.org/genproto/googleapis/pubsub/v1"
	"google.golang.org/grpc"
)

// processModAcks runs one ack-loop pass for this subscription: it
// erases completed ackIds from keepAlive, sends batched Acks and
// Nacks, then extends the deadlines of everything else that's close
// to expiry. It returns half the smallest time-to-expiry among the
// entries not yet due for extension, or soLong if there are none.
func (s *ackState) processModAcks(ctx context.Context, sub pubsubpb.SubscriberClient, pendingAck, pendingNack ackSet) time.Duration {
	eraseKeys(s.keepAlive, pendingAck)
	s.sendAcks(ctx, sub, pendingAck)

	eraseKeys(s.keepAlive, pendingNack)
	s.sendNacks(ctx, sub, pendingNack)

	return s.extendKeepAlives(ctx, sub)
}

func (s *ackState) sendAcks(ctx context.Context, sub pubsubpb.SubscriberClient, ids ackSet) {
	for len(ids) > 0 {
		batch := splitSet(ids, maxRequestPayloadConst)
		if len(batch) == 0 {
			break
		}
		s.ackMessages(ctx, sub, batch)
	}
}

func (s *ackState) sendNacks(ctx context.Context, sub pubsubpb.SubscriberClient, ids ackSet) {
	for len(ids) > 0 {
		batch := splitSet(ids, maxRequestPayloadConst)
		if len(batch) == 0 {
			break
		}
		s.extendAckDeadlines(ctx, sub, keysOf(batch), 0, nil)
	}
}

// extendKeepAlives extends the deadline of every keepAlive entry
// whose extendIn is within the grace period of expiring. Entries not
// yet due report their smallest extendIn; half of that is returned as
// the requested next sleep.
func (s *ackState) extendKeepAlives(ctx context.Context, sub pubsubpb.SubscriberClient) time.Duration {
	if len(s.keepAlive) == 0 {
		return soLong
	}

	now := time.Now()
	var toModify []ackEntry
	sleep := soLong

	for id, w := range s.keepAlive {
		in := w.extendIn(now)
		if in <= s.gracePeriod {
			toModify = append(toModify, ackEntry{id: id, watch: w})
			continue
		}
		if in < sleep {
			sleep = in
		}
	}

	if len(toModify) == 0 {
		if sleep == soLong {
			return soLong
		}
		return sleep / 2
	}

	newDeadline := s.ackDeadline()
	for len(toModify) > 0 {
		var batch []ackEntry
		batch, toModify = splitPack(toModify, maxRequestPayloadConst)
		if len(batch) == 0 {
			break
		}
		s.extendAckDeadlinesPack(ctx, sub, batch, newDeadline)
	}
	if sleep == soLong {
		return soLong
	}
	return sleep / 2
}

// extendAckDeadlines issues one ModifyAckDeadline call for ids and,
// on success, invokes onSuccess with the rpc-time-derived next
// deadline (nil when the caller doesn't need it, e.g. for Nacks which
// never get merged back into keepAlive).
func (s *ackState) extendAckDeadlines(ctx context.Context, sub pubsubpb.SubscriberClient, ids []string, newDeadline time.Duration, onSuccess func(time.Time)) {
	req := &pubsubpb.ModifyAckDeadlineRequest{
		Subscription:       s.subscriptionName,
		AckIds:             ids,
		AckDeadlineSeconds: int32(newDeadline / time.Second),
	}

	err, rpcTime := retry.Do(ctx, s.policies, defaultRPCTimeoutConst, func(ctx context.Context, timeout time.Duration) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := sub.ModifyAckDeadline(callCtx, req, grpc.WaitForReady(false))
		return err
	})
	if err != nil {
		return
	}
	if onSuccess != nil {
		onSuccess(rpcTime.Add(newDeadline))
	}
}

// extendAckDeadlinesPack is extendAckDeadlines specialized for the
// keep-alive extension path, which must update each entry's nextAck
// in place once the call succeeds.
func (s *ackState) extendAckDeadlinesPack(ctx context.Context, sub pubsubpb.SubscriberClient, batch []ackEntry, newDeadline time.Duration) {
	s.extendAckDeadlines(ctx, sub, idsOf(batch), newDeadline, func(next time.Time) {
		for _, e := range batch {
			e.watch.nextAck = next
		}
	})
}

func (s *ackState) ackMessages(ctx context.Context, sub pubsubpb.SubscriberClient, ids ackSet) {
	req := &pubsubpb.AcknowledgeRequest{
		Subscription: s.subscriptionName,
		AckIds:       keysOf(ids),
	}
	_, _ = retry.Do(ctx, s.policies, defaultRPCTimeoutConst, func(ctx context.Context, timeout time.Duration) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := sub.Acknowledge(callCtx, req)
		return err
	})
}

func idsOf(entries []ackEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.id
	}
	return out
}

func keysOf(ids ackSet) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

const maxRequestPayloadConst = 512 * 1024
const defaultRPCTimeoutConst = 20 * time.Second
