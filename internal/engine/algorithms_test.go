package engine

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func TestEraseKeys(t *testing.T) {
	c := qt.New(t)
	from := watchMap{"a": &ackWatch{}, "b": &ackWatch{}, "c": &ackWatch{}}
	eraseKeys(from, newAckSet("a", "c"))
	c.Assert(from, qt.HasLen, 1)
	_, ok := from["b"]
	c.Assert(ok, qt.IsTrue)
}

func TestGiveMeTheKeys(t *testing.T) {
	c := qt.New(t)
	base := time.Now()
	now := watchMap{
		"a": &ackWatch{nextAck: base.Add(time.Second)},
		"b": &ackWatch{nextAck: base.Add(5 * time.Second)},
	}
	got := giveMeTheKeys(now, func(w *ackWatch) bool { return w.nextAck.After(base.Add(2 * time.Second)) })
	c.Assert(got, qt.HasLen, 1)
	c.Assert(got[0].id, qt.Equals, "b")
}

func TestSplitSetDrainsUnderCap(t *testing.T) {
	c := qt.New(t)
	ids := make(ackSet)
	for i := 0; i < 100; i++ {
		ids[strings.Repeat("x", 20)+strconv.Itoa(i)] = struct{}{}
	}
	total := len(ids)

	var batches int
	drained := 0
	for len(ids) > 0 {
		batch := splitSet(ids, 150)
		c.Assert(len(batch) > 0, qt.IsTrue)
		drained += len(batch)
		batches++
		c.Assert(batches < 1000, qt.IsTrue) // guard against an infinite loop bug
	}
	c.Assert(drained, qt.Equals, total)
}

func TestSplitSetBatchSizeMatchesCostModel(t *testing.T) {
	c := qt.New(t)
	ids := make(ackSet)
	// 100 ids of length 20: cost per id is overheadPerID+20 = 23.
	// reqFixedOverhead(100) + n*23 < 150  =>  n < 50/23 ~= 2.17 => n<=2
	for i := 0; i < 100; i++ {
		ids[strings.Repeat("a", 18)+fmt.Sprintf("%02d", i)] = struct{}{}
	}
	batch := splitSet(ids, 150)
	c.Assert(batch, qt.HasLen, 2)
}

func TestSplitPackPreservesWatchPointers(t *testing.T) {
	c := qt.New(t)
	entries := []ackEntry{
		{id: strings.Repeat("a", 18) + "0", watch: &ackWatch{}},
		{id: strings.Repeat("a", 18) + "1", watch: &ackWatch{}},
		{id: strings.Repeat("a", 18) + "2", watch: &ackWatch{}},
	}
	batch, rest := splitPack(entries, 150)
	c.Assert(batch, qt.HasLen, 2)
	c.Assert(rest, qt.HasLen, 1)
	// The watch pointers must be the exact same ones handed in, since
	// callers mutate nextAck through them after the RPC succeeds.
	c.Assert(batch[0].watch, qt.Equals, entries[0].watch)
}
