// Package retry implements the RPC retry driver and the exponential
// backoff generator shared by every RPC wrapper in pubsuber.
package retry

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"time"
)

// defaultJitter matches the original pubsuber implementation's
// DefaultJitter constant: the standard deviation of the sampled delay
// as a fraction of its mean.
const defaultJitter = 0.1140430175

// BackoffPolicy configures an exponential backoff sequence.
type BackoffPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Scale        float64
}

// DefaultBackoffPolicy matches the package's documented defaults.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Scale:        2.0,
	}
}

// Backoff produces an exponentially growing, jittered delay sequence
// capped by policy.MaxDelay. It is not safe for concurrent use by
// multiple goroutines — each retry loop owns its own Backoff.
type Backoff struct {
	policy  BackoffPolicy
	jitter  float64
	rng     *mrand.Rand
	current time.Duration
	attempt uint32
}

// New creates a Backoff seeded from a true entropy source.
func New(policy BackoffPolicy) *Backoff {
	return &Backoff{
		policy:  policy,
		jitter:  defaultJitter,
		rng:     mrand.New(mrand.NewPCG(seedUint64(), seedUint64())),
		current: policy.InitialDelay,
	}
}

func seedUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable for anything
		// that depends on secure randomness; fall back to a time-based
		// seed so the process still makes progress with jittered retries.
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// Delay returns the current delay and advances the sequence.
func (b *Backoff) Delay() time.Duration {
	b.attempt++
	ret := b.current
	b.calculateNext()
	return ret
}

// RetryCount reports how many times Delay has been called.
func (b *Backoff) RetryCount() uint32 { return b.attempt }

func (b *Backoff) calculateNext() {
	next := float64(b.current) * b.policy.Scale

	if time.Duration(next) > b.policy.MaxDelay {
		next = float64(b.policy.MaxDelay)
	}

	var sampled time.Duration
	if b.jitter < 0.0001 {
		sampled = time.Duration(next)
	} else {
		sigma := b.jitter * next
		sampled = time.Duration(b.rng.NormFloat64()*sigma + next)
	}

	if sampled > b.policy.MaxDelay {
		sampled = b.policy.MaxDelay
	}
	if sampled < 0 {
		sampled = 0
	}
	b.current = sampled
}
