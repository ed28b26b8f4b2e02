package pubsuber

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestDefaultClientConfig(t *testing.T) {
	c := qt.New(t)
	cfg := defaultClientConfig()
	c.Assert(cfg.host, qt.Equals, defaultHost)
	c.Assert(cfg.secureChannel, qt.IsTrue)
	c.Assert(cfg.maxMessagePrefetch, qt.Equals, int32(4))
}

func TestOptionsOverrideDefaults(t *testing.T) {
	c := qt.New(t)
	cfg := defaultClientConfig()

	for _, opt := range []ClientOption{
		WithHost("localhost:8085"),
		WithInsecure(),
		WithMaxMessagePrefetch(5),
		WithRetryCount(7),
		WithRetryTimeout(3 * time.Minute),
		WithBackoff(time.Millisecond, time.Second, 1.5),
	} {
		opt(cfg)
	}

	c.Assert(cfg.host, qt.Equals, "localhost:8085")
	c.Assert(cfg.secureChannel, qt.IsFalse)
	c.Assert(cfg.maxMessagePrefetch, qt.Equals, int32(5))
	c.Assert(cfg.countPolicy.Count, qt.Equals, uint32(7))
	c.Assert(cfg.timePolicy.Interval, qt.Equals, 3*time.Minute)
	c.Assert(cfg.backoffPolicy.InitialDelay, qt.Equals, time.Millisecond)
	c.Assert(cfg.backoffPolicy.MaxDelay, qt.Equals, time.Second)
	c.Assert(cfg.backoffPolicy.Scale, qt.Equals, 1.5)
}

func TestWithMetricSink(t *testing.T) {
	c := qt.New(t)
	cfg := defaultClientConfig()
	sink := &ExpVarMetricSink{}
	WithMetricSink(sink)(cfg)
	c.Assert(cfg.metricSink, qt.Equals, MetricSink(sink))
}
