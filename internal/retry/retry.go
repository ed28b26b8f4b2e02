package retry

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CountPolicy bounds the number of attempts. A zero Count means
// unbounded (bounded only by TimePolicy).
type CountPolicy struct {
	Count uint32
}

// TimePolicy bounds the total wall-clock time spent retrying.
type TimePolicy struct {
	Interval time.Duration
}

// DefaultCountPolicy and DefaultTimePolicy match the package defaults
// documented for the client.
func DefaultCountPolicy() CountPolicy { return CountPolicy{Count: 3} }
func DefaultTimePolicy() TimePolicy   { return TimePolicy{Interval: 15 * time.Second} }

// Policies is an immutable snapshot of the policies used for one call
// to Do. Snapshotting (rather than reading live, mutable fields) is
// deliberate: an in-flight retry loop must not observe a
// Client.ApplyPolicies update made by another goroutine mid-flight.
type Policies struct {
	Count   CountPolicy
	Time    TimePolicy
	Backoff BackoffPolicy
}

// Call is a single unary RPC invocation: it runs fn under a per-call
// deadline of timeout and returns the resulting error (nil on
// success). The returned error is inspected with status.Code, so any
// non-gRPC error is treated as a terminal, non-retryable failure.
type Call func(ctx context.Context, timeout time.Duration) error

// Do executes fn repeatedly under the combined count/time/backoff
// policy in policies, classifying DEADLINE_EXCEEDED and UNAVAILABLE as
// retryable and everything else — including OK — as terminal.
//
// It returns the last error from fn (nil on success) and the instant
// just before the call that produced that result, which callers use
// to compute deadline extensions (nextAck = returned time + new
// deadline). When the count or time budget runs out, the returned
// instant is the moment the budget was found spent.
func Do(ctx context.Context, policies Policies, rpcTimeout time.Duration, fn Call) (error, time.Time) {
	if rpcTimeout <= 0 {
		rpcTimeout = 20 * time.Second
	}

	start := time.Now()
	backoff := New(policies.Backoff)
	var lastErr error

	for {
		if exhausted(start, backoff.RetryCount(), policies.Count, policies.Time) {
			return lastErr, time.Now()
		}

		callTime := time.Now()
		lastErr = fn(ctx, rpcTimeout)

		switch status.Code(lastErr) {
		case codes.DeadlineExceeded:
			rpcTimeout *= 2
			sleep(ctx, backoff.Delay())
			continue

		case codes.Unavailable:
			sleep(ctx, backoff.Delay())
			continue

		default:
			// Includes codes.OK (lastErr == nil) and every other
			// terminal status: returned to the caller unchanged so it
			// can branch on semantic codes such as NOT_FOUND.
			return lastErr, callTime
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// exhausted reports whether the loop should stop without another
// attempt, given retryCount prior attempts have already happened. A
// CountPolicy of N allows N retries after the initial attempt, for N+1
// invocations of the callable in total.
func exhausted(start time.Time, retryCount uint32, count CountPolicy, tp TimePolicy) bool {
	if count.Count > 0 && retryCount > count.Count {
		return true
	}
	return time.Since(start) > tp.Interval
}
