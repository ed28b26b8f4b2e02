// Package distribution implements the bounded latency histogram used
// to pick an adaptive ack deadline.
package distribution

import (
	"math"
	"sync/atomic"
)

// Histogram holds per-second buckets [0, high] and tracks observed
// end-to-end message-handling times. All methods are safe for
// concurrent use: updates are lock-free per-bucket atomics, and
// Percentile tolerates concurrent Record calls (its snapshot may be
// slightly stale but is always monotone non-decreasing per bucket).
type Histogram struct {
	high    int
	buckets []atomic.Uint64
}

// New creates a Histogram capable of holding values from 0 to high,
// inclusive.
func New(high int) *Histogram {
	return &Histogram{high: high, buckets: make([]atomic.Uint64, high+1)}
}

// Record clamps v to the histogram's high bound and increments that
// bucket.
func (h *Histogram) Record(v int) {
	if v < 0 {
		v = 0
	} else if v > h.high {
		v = h.high
	}
	h.buckets[v].Add(1)
}

// Percentile returns the smallest bucket index whose cumulative count
// is at least ceil(total * p). It returns 0 if no values have been
// recorded.
func (h *Histogram) Percentile(p float64) int {
	sums := make([]uint64, len(h.buckets))
	var sum uint64
	for i := range h.buckets {
		sum += h.buckets[i].Load()
		sums[i] = sum
	}
	if sum == 0 {
		return 0
	}

	target := uint64(math.Ceil(float64(sum) * p))
	for i, cum := range sums {
		if cum >= target {
			return i
		}
	}
	return h.high
}
