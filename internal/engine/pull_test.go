package engine

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/rs/zerolog"
	pubsubpb "google.golang.org/genproto/googleapis/pubsub/v1"
	"google.golang.org/grpc"
)

type fakePullClient struct {
	pubsubpb.SubscriberClient

	resp *pubsubpb.PullResponse
	err  error

	lastReq *pubsubpb.PullRequest
}

func (f *fakePullClient) Pull(ctx context.Context, in *pubsubpb.PullRequest, opts ...grpc.CallOption) (*pubsubpb.PullResponse, error) {
	f.lastReq = in
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestPullDeliversMessagesAndSchedulesWatchers(t *testing.T) {
	c := qt.New(t)
	ack := newAckState("projects/p/subscriptions/s", testPolicies())

	var delivered []RawMessage
	ps := &pullState{
		subscriptionName: "projects/p/subscriptions/s",
		maxPrefetch:      10,
		callback:         func(m RawMessage) { delivered = append(delivered, m) },
		ack:              ack,
	}

	client := &fakePullClient{
		resp: &pubsubpb.PullResponse{
			ReceivedMessages: []*pubsubpb.ReceivedMessage{
				{AckId: "id-1", Message: &pubsubpb.PubsubMessage{Data: []byte("one")}},
				{AckId: "id-2", Message: &pubsubpb.PubsubMessage{Data: []byte("two")}},
			},
		},
	}

	ps.pull(context.Background(), client, zerolog.Nop())

	c.Assert(delivered, qt.HasLen, 2)
	c.Assert(delivered[0].AckID, qt.Equals, "id-1")
	c.Assert(delivered[1].Data, qt.DeepEquals, []byte("two"))
	c.Assert(client.lastReq.MaxMessages, qt.Equals, int32(10))
	c.Assert(client.lastReq.ReturnImmediately, qt.IsTrue)

	ack.lock()
	c.Assert(ack.inputCountLocked(), qt.Equals, 2)
	ack.unlock()
}

func TestPullHandlesEmptyResponse(t *testing.T) {
	c := qt.New(t)
	ack := newAckState("sub", testPolicies())
	called := false
	ps := &pullState{
		subscriptionName: "sub",
		maxPrefetch:      10,
		callback:         func(m RawMessage) { called = true },
		ack:              ack,
	}
	client := &fakePullClient{resp: &pubsubpb.PullResponse{}}
	ps.pull(context.Background(), client, zerolog.Nop())
	c.Assert(called, qt.IsFalse)
}

func TestPullLogsAndReturnsOnError(t *testing.T) {
	c := qt.New(t)
	ack := newAckState("sub", testPolicies())
	called := false
	ps := &pullState{
		subscriptionName: "sub",
		maxPrefetch:      10,
		callback:         func(m RawMessage) { called = true },
		ack:              ack,
	}
	client := &fakePullClient{err: context.DeadlineExceeded}
	ps.pull(context.Background(), client, zerolog.Nop())
	c.Assert(called, qt.IsFalse)
}
