package pubsuber

import (
	"context"
	"time"

	"github.com/sandvikcode/pubsuber-go/internal/retry"
	pubsubpb "google.golang.org/genproto/googleapis/pubsub/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TopicAPI is the interface *Topic satisfies. Application code that
// wants to test against a fake topic without depending on this
// package's concrete gRPC-backed implementation can depend on this
// instead.
type TopicAPI interface {
	ID() string
	Name() string
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Delete(ctx context.Context) error
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Topic is a handle to a Pub/Sub topic. Handles are cheap; create one
// per use rather than caching them.
type Topic struct {
	client *Client
	id     string
	name   string
}

var _ TopicAPI = (*Topic)(nil)

// ID returns the topic's short name, as passed to Client.Topic.
func (t *Topic) ID() string { return t.id }

// Name returns the topic's fully qualified resource name.
func (t *Topic) Name() string { return t.name }

// Exists reports whether the topic exists. Concurrent calls for the
// same topic are collapsed into a single RPC.
func (t *Topic) Exists(ctx context.Context) (bool, error) {
	return t.client.dedupExists(t.name, func() (bool, error) {
		err, _ := retry.Do(ctx, t.client.policies(), controlPlaneRPCTimeout, func(ctx context.Context, timeout time.Duration) error {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			_, err := t.client.publisher.GetTopic(callCtx, &pubsubpb.GetTopicRequest{Topic: t.name})
			return err
		})
		if err == nil {
			return true, nil
		}
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, errb().Code(status.Code(err)).Msg("checking topic existence").Cause(err).Err()
	})
}

// Create creates the topic.
func (t *Topic) Create(ctx context.Context) error {
	err, _ := retry.Do(ctx, t.client.policies(), controlPlaneRPCTimeout, func(ctx context.Context, timeout time.Duration) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := t.client.publisher.CreateTopic(callCtx, &pubsubpb.Topic{Name: t.name})
		return err
	})
	if err != nil {
		return errb().Code(status.Code(err)).Msg("creating topic").Cause(err).Err()
	}
	return nil
}

// Delete deletes the topic. A topic that does not exist is treated as
// already deleted: Delete returns nil rather than a NOT_FOUND error.
func (t *Topic) Delete(ctx context.Context) error {
	err, _ := retry.Do(ctx, t.client.policies(), controlPlaneRPCTimeout, func(ctx context.Context, timeout time.Duration) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := t.client.publisher.DeleteTopic(callCtx, &pubsubpb.DeleteTopicRequest{Topic: t.name})
		return err
	})
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return errb().Code(status.Code(err)).Msg("deleting topic").Cause(err).Err()
}

// Publish publishes one message with the given payload and attributes,
// returning the broker-assigned message id.
func (t *Topic) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	for k := range attrs {
		if k == "" {
			return "", errb().Code(codes.InvalidArgument).Msg("attribute key must not be empty").Err()
		}
	}

	req := &pubsubpb.PublishRequest{
		Topic: t.name,
		Messages: []*pubsubpb.PubsubMessage{
			{Data: data, Attributes: attrs},
		},
	}

	var messageID string
	err, _ := retry.Do(ctx, t.client.policies(), defaultRPCTimeout, func(ctx context.Context, timeout time.Duration) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		resp, err := t.client.publisher.Publish(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.MessageIds) > 0 {
			messageID = resp.MessageIds[0]
		}
		return nil
	})
	if err != nil {
		return "", errb().Code(status.Code(err)).Msg("publishing message").Cause(err).Err()
	}
	return messageID, nil
}
