// Package pubsuber is a Google Cloud Pub/Sub client library.
//
// Its hard core is the subscription receiver: a pair of background
// loops that pull messages from the broker, deliver them to a user
// callback, and keep their acknowledgment deadlines alive until the
// application acks or nacks each one.
package pubsuber

import "time"

// Broker-defined deadline bounds. A subscription's ack deadline is
// always clamped to this range.
const (
	minAckDeadline = 10 * time.Second
	maxAckDeadline = 600 * time.Second
)

// maxRequestPayload is the cap on the serialized size of an
// Acknowledge or ModifyAckDeadline request. gRPC servers commonly cap
// messages at 512 KiB and there is no portable way to learn the
// server's actual limit, so we assume it.
const maxRequestPayload = 512 * 1024

// reqFixedOverhead and overheadPerID approximate the serialized size
// of an Acknowledge/ModifyAckDeadline request excluding the ack ids
// themselves, so the batch splitter can stay under maxRequestPayload
// without an actual protobuf Size() call per candidate batch.
const (
	reqFixedOverhead = 100
	overheadPerID    = 3
)

// pullLowRateCap bounds how often the pull loop issues a Pull RPC per
// subscription when the broker has little to deliver.
const pullLowRateCap = 250 * time.Millisecond

// defaultRPCTimeout is the per-call deadline used for data-plane RPCs
// (Pull, Acknowledge, ModifyAckDeadline, Publish) unless overridden.
const defaultRPCTimeout = 20 * time.Second

// controlPlaneRPCTimeout is the per-call deadline for topic and
// subscription CRUD calls.
const controlPlaneRPCTimeout = 30 * time.Second

// channelConnectTimeout bounds how long EnsureConnected waits for the
// shared gRPC channel to report READY.
const channelConnectTimeout = 5 * time.Second

// gracePeriod is how early before expiry the ack loop extends a
// message's deadline.
const gracePeriod = minAckDeadline / 2

// defaultHost is the production Pub/Sub endpoint.
const defaultHost = "pubsub.googleapis.com:443"
