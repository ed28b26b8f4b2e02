package pubsuber

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sandvikcode/pubsuber-go/internal/retry"
)

// clientConfig holds everything a ClientOption can set. It is never
// exported; options are the only way to shape it.
type clientConfig struct {
	host          string
	secureChannel bool

	maxMessagePrefetch int32

	countPolicy   retry.CountPolicy
	timePolicy    retry.TimePolicy
	backoffPolicy retry.BackoffPolicy

	logger     zerolog.Logger
	metricSink MetricSink
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		host:               defaultHost,
		secureChannel:      true,
		maxMessagePrefetch: 4,
		countPolicy:        retry.DefaultCountPolicy(),
		timePolicy:         retry.DefaultTimePolicy(),
		backoffPolicy:      retry.DefaultBackoffPolicy(),
		logger:             zerolog.Nop(),
		metricSink:         NopMetricSink{},
	}
}

// ClientOption configures a Client at construction time: a function
// over the unexported client configuration, applied in order.
type ClientOption func(*clientConfig)

// WithHost overrides the Pub/Sub endpoint. Mainly useful for pointing at
// a local emulator, usually paired with WithInsecure.
func WithHost(host string) ClientOption {
	return func(c *clientConfig) { c.host = host }
}

// WithInsecure disables TLS and per-RPC OAuth credentials. Only the
// Pub/Sub emulator should ever be addressed this way.
func WithInsecure() ClientOption {
	return func(c *clientConfig) { c.secureChannel = false }
}

// WithMaxMessagePrefetch bounds how many messages a single Pull RPC may
// return for any one subscription.
func WithMaxMessagePrefetch(n int32) ClientOption {
	return func(c *clientConfig) { c.maxMessagePrefetch = n }
}

// WithRetryCount bounds how many retries a retryable RPC gets after its
// initial attempt before giving up, so count+1 attempts in total. Zero
// means unbounded (bounded only by WithRetryTimeout).
func WithRetryCount(count uint32) ClientOption {
	return func(c *clientConfig) { c.countPolicy = retry.CountPolicy{Count: count} }
}

// WithRetryTimeout bounds the wall-clock time a retry loop may run for.
func WithRetryTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timePolicy = retry.TimePolicy{Interval: d} }
}

// WithBackoff sets the initial delay, maximum delay, and exponential
// scale factor used between retries.
func WithBackoff(initialDelay, maxDelay time.Duration, scale float64) ClientOption {
	return func(c *clientConfig) {
		c.backoffPolicy = retry.BackoffPolicy{InitialDelay: initialDelay, MaxDelay: maxDelay, Scale: scale}
	}
}

// WithLogger injects the zerolog.Logger the client and its
// subscriptions log through. The zero value (Nop) drops all output.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = log }
}

// WithMetricSink installs a sink that receives keep-alive queue depth
// reports from the client's ack loop, summed across all subscriptions.
func WithMetricSink(sink MetricSink) ClientOption {
	return func(c *clientConfig) { c.metricSink = sink }
}

func (c *clientConfig) policies() retry.Policies {
	return retry.Policies{Count: c.countPolicy, Time: c.timePolicy, Backoff: c.backoffPolicy}
}
