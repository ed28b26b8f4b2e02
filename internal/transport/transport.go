// Package transport owns the single gRPC channel shared by every
// topic and subscription of a client.
package transport

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/credentials/oauth"
)

// pubsubScope is the OAuth2 scope required for the Pub/Sub API.
const pubsubScope = "https://www.googleapis.com/auth/pubsub"

const maxSendRecvBytes = 20 * 1024 * 1024

// Transport holds the broker channel and credentials. It is shared by
// every Topic and Subscription created from the same Client.
type Transport struct {
	conn *grpc.ClientConn
}

// Dial connects to host. When secure is false, insecure credentials
// are used — only ever appropriate for a local Pub/Sub emulator.
func Dial(ctx context.Context, host string, secure bool) (*Transport, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxSendRecvBytes),
			grpc.MaxCallSendMsgSize(maxSendRecvBytes),
		),
	}

	if secure {
		tokenSource, err := google.DefaultTokenSource(ctx, pubsubScope)
		if err != nil {
			return nil, fmt.Errorf("pubsuber: loading default application credentials: %w", err)
		}
		dialOpts = append(dialOpts,
			grpc.WithTransportCredentials(credentials.NewTLS(nil)),
			grpc.WithPerRPCCredentials(oauth.TokenSource{TokenSource: tokenSource}),
		)
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(host, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("pubsuber: dialing %s: %w", host, err)
	}
	return &Transport{conn: conn}, nil
}

// Conn returns the underlying gRPC connection, used to construct the
// Publisher/Subscriber RPC stubs.
func (t *Transport) Conn() *grpc.ClientConn { return t.conn }

// EnsureConnected blocks until the channel reports connectivity.Ready
// or timeout elapses, returning whether it became ready in time.
func (t *Transport) EnsureConnected(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	t.conn.Connect()
	for {
		state := t.conn.GetState()
		if state == connectivity.Ready {
			return true
		}
		if !t.conn.WaitForStateChange(ctx, state) {
			return t.conn.GetState() == connectivity.Ready
		}
	}
}

// Close tears down the shared channel.
func (t *Transport) Close() error {
	return t.conn.Close()
}
