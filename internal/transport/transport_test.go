package transport

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestDialInsecureSucceedsWithoutConnecting(t *testing.T) {
	c := qt.New(t)
	// grpc.NewClient dials lazily, so pointing at a port nothing is
	// listening on must still succeed here; only an actual RPC or an
	// explicit Connect would observe the failure.
	tr, err := Dial(context.Background(), "127.0.0.1:0", false)
	c.Assert(err, qt.IsNil)
	c.Assert(tr.Conn(), qt.IsNotNil)
	c.Assert(tr.Close(), qt.IsNil)
}

func TestEnsureConnectedTimesOutWithNoListener(t *testing.T) {
	c := qt.New(t)
	tr, err := Dial(context.Background(), "127.0.0.1:1", false)
	c.Assert(err, qt.IsNil)
	defer tr.Close()

	start := time.Now()
	ok := tr.EnsureConnected(200 * time.Millisecond)
	c.Assert(ok, qt.IsFalse)
	c.Assert(time.Since(start) < 5*time.Second, qt.IsTrue)
}
