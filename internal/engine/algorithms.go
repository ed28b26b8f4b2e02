package engine

// eraseKeys removes every id in what from from, mutating from in
// place. Grounded on the original's erase_keys in Algorithms.h.
func eraseKeys(from watchMap, what ackSet) {
	for id := range what {
		delete(from, id)
	}
}

// giveMeTheKeys selects entries from ids for which pred returns true,
// returning them as an ackEntry slice without mutating ids. Grounded
// on the original's give_me_the_keys.
func giveMeTheKeys(ids watchMap, pred func(*ackWatch) bool) []ackEntry {
	var toModify []ackEntry
	for id, w := range ids {
		if pred(w) {
			toModify = append(toModify, ackEntry{id: id, watch: w})
		}
	}
	return toModify
}

// splitSet extracts ids from remainder (mutating it) into a batch
// whose estimated serialized size stays under maxSize, per the
// spec's batch-splitting rule: reqFixedOverhead plus
// overheadPerID+len(id) per id. It drains remainder — the set-variant
// shape described in spec.md §9's "populate_ack_ids" Open Question.
func splitSet(remainder ackSet, maxSize int) ackSet {
	batch := make(ackSet)
	size := reqFixedOverhead

	for id := range remainder {
		cost := overheadPerID + len(id)
		if size+cost >= maxSize {
			continue
		}
		size += cost
		batch[id] = struct{}{}
		delete(remainder, id)
	}
	return batch
}

// splitPack extracts entries from remainder into a batch under
// maxSize, the same way splitSet does, but over an ackEntry slice —
// the pack-variant shape. Entries not selected are returned as rest
// so the caller can retry them on the next split-loop iteration;
// callers need the original *ackWatch pointers afterward to update
// nextAck once the batch's ModifyAckDeadline call succeeds.
func splitPack(remainder []ackEntry, maxSize int) (batch []ackEntry, rest []ackEntry) {
	size := reqFixedOverhead

	for _, e := range remainder {
		cost := overheadPerID + len(e.id)
		if size+cost >= maxSize {
			rest = append(rest, e)
			continue
		}
		size += cost
		batch = append(batch, e)
	}
	return batch, rest
}

const reqFixedOverhead = 100
const overheadPerID = 3
