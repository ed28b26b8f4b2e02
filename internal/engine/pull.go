package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	pubsubpb "google.golang.org/genproto/googleapis/pubsub/v1"
)

// RawMessage is the payload handed to the user callback: an opaque
// byte buffer, its attributes, the ackId needed to complete it, and
// the receive timestamp used to compute handling latency.
type RawMessage struct {
	Data             []byte
	Attributes       map[string]string
	SubscriptionName string
	AckID            string
	ReceiveTime      time.Time
}

// Callback delivers one pulled message to user code. It runs
// synchronously on the pull loop goroutine and must be fast.
type Callback func(RawMessage)

// pullState is the per-subscription state owned by the pull loop.
type pullState struct {
	subscriptionName string
	maxPrefetch      int32
	callback         Callback
	ack              *ackState
}

// pull issues one bounded Pull RPC for this subscription and delivers
// any received messages to the callback, after scheduling each for
// deadline extension.
func (p *pullState) pull(ctx context.Context, sub pubsubpb.SubscriberClient, log zerolog.Logger) {
	callCtx, cancel := context.WithTimeout(ctx, defaultRPCTimeoutConst)
	defer cancel()

	resp, err := sub.Pull(callCtx, &pubsubpb.PullRequest{
		Subscription:      p.subscriptionName,
		MaxMessages:       p.maxPrefetch,
		ReturnImmediately: true,
	})
	if err != nil {
		log.Error().Err(err).Str("subscription", p.subscriptionName).Msg("pull failed")
		return
	}

	if len(resp.ReceivedMessages) == 0 {
		return
	}

	receiveTime := time.Now()
	nextAck := receiveTime.Add(minAckDeadlineConst - time.Second)

	for _, rm := range resp.ReceivedMessages {
		p.ack.addDeadlineWatcher(rm.AckId, nextAck)
	}

	// Deliver in the order the broker returned them.
	for _, rm := range resp.ReceivedMessages {
		msg := rm.Message
		p.callback(RawMessage{
			Data:             msg.GetData(),
			Attributes:       msg.GetAttributes(),
			SubscriptionName: p.subscriptionName,
			AckID:            rm.AckId,
			ReceiveTime:      receiveTime,
		})
	}
}
