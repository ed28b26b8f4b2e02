package pubsuber

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sandvikcode/pubsuber-go/internal/engine"
	"github.com/sandvikcode/pubsuber-go/internal/retry"
	pubsubpb "google.golang.org/genproto/googleapis/pubsub/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type subState int32

const (
	subIdle subState = iota
	subReceiving
	subStopped
)

// SubscriptionAPI is the interface *Subscription satisfies. Like
// TopicAPI, it exists so application code can be tested against a
// fake subscription.
type SubscriptionAPI interface {
	ID() string
	Name() string
	Exists(ctx context.Context) (bool, error)
	AckDeadline() time.Duration
	Create(ctx context.Context, topic *Topic, ackDeadline time.Duration) error
	Delete(ctx context.Context) error
	Receive(ctx context.Context, f ReceiveFunc) error
	Stop()
}

// Subscription is a handle to a Pub/Sub subscription. A Subscription
// may have Receive called on it at most once; calling it a second
// time, whether or not the first call has returned, returns an error.
type Subscription struct {
	client *Client
	id     string
	name   string

	state atomic.Int32
	// stopc is closed by Stop to unblock a running Receive.
	stopc chan struct{}

	// ackDeadlineSeconds caches the broker-reported ack_deadline_seconds
	// from the last successful Exists call, so callers that only probe
	// for existence still learn the deadline without a second RPC.
	ackDeadlineSeconds atomic.Int64
}

var _ SubscriptionAPI = (*Subscription)(nil)

// ID returns the subscription's short name, as passed to
// Client.Subscription.
func (s *Subscription) ID() string { return s.id }

// Name returns the subscription's fully qualified resource name.
func (s *Subscription) Name() string { return s.name }

// Exists reports whether the subscription exists. Concurrent calls for
// the same subscription are collapsed into a single RPC. On success it
// also caches the broker-reported ack deadline, retrievable with
// AckDeadline.
func (s *Subscription) Exists(ctx context.Context) (bool, error) {
	return s.client.dedupExists(s.name, func() (bool, error) {
		var resp *pubsubpb.Subscription
		err, _ := retry.Do(ctx, s.client.policies(), controlPlaneRPCTimeout, func(ctx context.Context, timeout time.Duration) error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			var err error
			resp, err = s.client.subscribe.GetSubscription(callCtx, &pubsubpb.GetSubscriptionRequest{Subscription: s.name})
			return err
		})
		if err == nil {
			s.ackDeadlineSeconds.Store(int64(resp.GetAckDeadlineSeconds()))
			return true, nil
		}
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, errb().Code(status.Code(err)).Msg("checking subscription existence").Cause(err).Err()
	})
}

// AckDeadline returns the ack deadline last observed via Exists, or
// zero if Exists has never completed successfully.
func (s *Subscription) AckDeadline() time.Duration {
	return time.Duration(s.ackDeadlineSeconds.Load()) * time.Second
}

// Create creates the subscription against the named topic with the
// given initial ack deadline.
func (s *Subscription) Create(ctx context.Context, topic *Topic, ackDeadline time.Duration) error {
	if ackDeadline < minAckDeadline {
		ackDeadline = minAckDeadline
	}
	if ackDeadline > maxAckDeadline {
		ackDeadline = maxAckDeadline
	}
	req := &pubsubpb.Subscription{
		Name:               s.name,
		Topic:              topic.Name(),
		AckDeadlineSeconds: int32(ackDeadline / time.Second),
	}
	err, _ := retry.Do(ctx, s.client.policies(), controlPlaneRPCTimeout, func(ctx context.Context, timeout time.Duration) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := s.client.subscribe.CreateSubscription(callCtx, req)
		return err
	})
	if err != nil {
		return errb().Code(status.Code(err)).Msg("creating subscription").Cause(err).Err()
	}
	return nil
}

// Delete deletes the subscription. A subscription that does not exist
// is treated as already deleted: Delete returns nil rather than a
// NOT_FOUND error.
func (s *Subscription) Delete(ctx context.Context) error {
	err, _ := retry.Do(ctx, s.client.policies(), controlPlaneRPCTimeout, func(ctx context.Context, timeout time.Duration) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := s.client.subscribe.DeleteSubscription(callCtx, &pubsubpb.DeleteSubscriptionRequest{Subscription: s.name})
		return err
	})
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return errb().Code(status.Code(err)).Msg("deleting subscription").Cause(err).Err()
}

// ReceiveFunc handles one delivered message. It must call exactly one
// of msg.Ack or msg.Nack.
type ReceiveFunc func(ctx context.Context, msg *Message)

// Receive registers this subscription with the client's shared pull
// and ack loops and blocks until ctx is cancelled or Stop is called.
// It may be called at most once per Subscription.
func (s *Subscription) Receive(ctx context.Context, f ReceiveFunc) error {
	if !s.state.CompareAndSwap(int32(subIdle), int32(subReceiving)) {
		return errb().Code(codes.FailedPrecondition).Msgf("subscription %s: Receive called more than once", s.id).Err()
	}
	s.stopc = make(chan struct{})

	callback := func(raw engine.RawMessage) {
		msg := newMessage(raw, s)
		f(ctx, msg)
	}
	s.client.executor.AddSubscription(s.name, s.client.cfg.maxMessagePrefetch, callback, s.client.policies())
	defer s.client.executor.RemoveSubscription(s.name)

	select {
	case <-ctx.Done():
	case <-s.stopc:
	}
	s.state.Store(int32(subStopped))
	return nil
}

// Stop unblocks a running Receive call. It is a no-op if Receive has
// not been called or has already returned.
func (s *Subscription) Stop() {
	if subState(s.state.Load()) == subReceiving && s.stopc != nil {
		close(s.stopc)
	}
}

// done implements the doner interface used by Message.Ack/Nack.
func (s *Subscription) done(ackID string, receiveTime time.Time, action engine.DoneAction) {
	s.client.executor.Done(s.name, ackID, receiveTime, action)
}
