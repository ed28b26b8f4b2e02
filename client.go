package pubsuber

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sandvikcode/pubsuber-go/internal/engine"
	"github.com/sandvikcode/pubsuber-go/internal/retry"
	"github.com/sandvikcode/pubsuber-go/internal/transport"
	"golang.org/x/sync/singleflight"
	pubsubpb "google.golang.org/genproto/googleapis/pubsub/v1"
	"google.golang.org/grpc/codes"
)

// Client is a connection to Pub/Sub for one GCP project. It owns a
// single gRPC channel and a single Executor shared by every
// Subscription the caller creates from it.
type Client struct {
	projectID string
	cfg       *clientConfig

	transport *transport.Transport
	publisher pubsubpb.PublisherClient
	subscribe pubsubpb.SubscriberClient
	executor  *engine.Executor

	// existsGroup collapses concurrent Exists calls against the same
	// resource name into a single RPC.
	existsGroup singleflight.Group

	log zerolog.Logger
}

// NewClient dials Pub/Sub (or an emulator, with WithInsecure and
// WithHost) for the given project and starts the background pull/ack
// loops shared by every Subscription created from this Client.
func NewClient(ctx context.Context, projectID string, opts ...ClientOption) (*Client, error) {
	if projectID == "" {
		return nil, errb().Code(codes.InvalidArgument).Msg("project id must not be empty").Err()
	}

	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	tr, err := transport.Dial(ctx, cfg.host, cfg.secureChannel)
	if err != nil {
		return nil, errb().Code(codes.Unavailable).Msg("connecting to pub/sub").Cause(err).Err()
	}

	conn := tr.Conn()
	c := &Client{
		projectID: projectID,
		cfg:       cfg,
		transport: tr,
		publisher: pubsubpb.NewPublisherClient(conn),
		subscribe: pubsubpb.NewSubscriberClient(conn),
		log:       cfg.logger,
	}
	c.executor = engine.NewExecutor(tr, c.subscribe, cfg.logger)
	c.executor.SetMetricSink(cfg.metricSink)

	return c, nil
}

// Close stops the background loops and tears down the gRPC channel.
// It does not affect messages already delivered to callbacks; callers
// should drain their own Subscriptions first.
func (c *Client) Close() error {
	c.executor.Stop()
	return c.transport.Close()
}

// ApplyPolicies replaces the retry behavior used for RPCs issued by
// this Client after this call. A subscription that is already
// receiving keeps the policies it was given when Receive was called;
// its acks, nacks and deadline extensions do not see the new ones.
func (c *Client) ApplyPolicies(opts ...ClientOption) {
	for _, opt := range opts {
		opt(c.cfg)
	}
}

func (c *Client) policies() retry.Policies {
	return c.cfg.policies()
}

// dedupExists collapses concurrent existence checks for the same
// resource name into one call to check.
func (c *Client) dedupExists(name string, check func() (bool, error)) (bool, error) {
	v, err, _ := c.existsGroup.Do(name, func() (interface{}, error) {
		return check()
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Topic returns a handle for the named topic. It does not verify the
// topic exists; call Exists or Create for that.
func (c *Client) Topic(id string) (*Topic, error) {
	if id == "" {
		return nil, errb().Code(codes.InvalidArgument).Msg("topic id must not be empty").Err()
	}
	return &Topic{
		client: c,
		id:     id,
		name:   fmt.Sprintf("projects/%s/topics/%s", c.projectID, id),
	}, nil
}

// Subscription returns a handle for the named subscription. It does
// not verify the subscription exists; call Exists or Create for that.
func (c *Client) Subscription(id string) (*Subscription, error) {
	if id == "" {
		return nil, errb().Code(codes.InvalidArgument).Msg("subscription id must not be empty").Err()
	}
	return &Subscription{
		client: c,
		id:     id,
		name:   fmt.Sprintf("projects/%s/subscriptions/%s", c.projectID, id),
	}, nil
}
