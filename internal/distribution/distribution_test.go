package distribution

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestEmptyIsZero(t *testing.T) {
	c := qt.New(t)
	h := New(600)
	c.Assert(h.Percentile(0.99), qt.Equals, 0)
}

func TestSingleValue(t *testing.T) {
	c := qt.New(t)
	h := New(600)
	h.Record(42)
	c.Assert(h.Percentile(0.5), qt.Equals, 42)
	c.Assert(h.Percentile(0.99), qt.Equals, 42)
}

func TestPercentile(t *testing.T) {
	c := qt.New(t)
	h := New(600)
	for i := 1; i <= 100; i++ {
		h.Record(i)
	}
	// The 99th percentile of a uniform 1..100 distribution lands at 99.
	c.Assert(h.Percentile(0.99), qt.Equals, 99)
	c.Assert(h.Percentile(0.5), qt.Equals, 50)
}

func TestClampsToHigh(t *testing.T) {
	c := qt.New(t)
	h := New(10)
	h.Record(1000)
	c.Assert(h.Percentile(0.99), qt.Equals, 10)
}

func TestClampsNegative(t *testing.T) {
	c := qt.New(t)
	h := New(10)
	h.Record(-5)
	c.Assert(h.Percentile(0.99), qt.Equals, 0)
}
