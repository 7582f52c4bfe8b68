// Package split divides an integer amount across ordered payment sessions
// while honoring each session's minimum sendable increment.
package split

// Result holds the allocation produced by Distribute. Sessions that could not
// be granted their minimum are absent from Distribution; Remaining is the
// portion of the requested amount left unallocated.
type Result struct {
	Distribution map[string]uint64
	Remaining    uint64
}

// Distribute splits amount across sessions in order. Each session receives a
// multiple of its minimum or nothing at all. The split is deterministic for a
// given (amount, session order) pair and favors earlier sessions when the
// amount does not divide evenly.
//
// Sessions whose minimum cannot be covered by an even share of the remaining
// amount are dropped, largest minimum first, and the amount is re-split among
// the rest.
func Distribute(amount uint64, sessions []string, minOf func(string) uint64) Result {
	out := Result{
		Distribution: make(map[string]uint64, len(sessions)),
		Remaining:    amount,
	}
	if amount == 0 || len(sessions) == 0 {
		return out
	}

	active := make([]string, 0, len(sessions))
	active = append(active, sessions...)

	// Drop sessions that an even share cannot cover, re-splitting after each
	// drop so smaller minimums can still absorb the freed share.
	var share uint64
	for len(active) > 0 {
		share = out.Remaining / uint64(len(active))
		dropIdx := -1
		var dropMin uint64
		for i, id := range active {
			min := minOf(id)
			if min == 0 {
				min = 1
			}
			if min > share && min >= dropMin {
				dropIdx = i
				dropMin = min
			}
		}
		if dropIdx < 0 {
			break
		}
		active = append(active[:dropIdx], active[dropIdx+1:]...)
	}
	if len(active) == 0 {
		return out
	}

	// Even share, floored to a multiple of each session's minimum.
	for _, id := range active {
		min := minOf(id)
		if min == 0 {
			min = 1
		}
		give := (share / min) * min
		if give == 0 {
			continue
		}
		out.Distribution[id] += give
		out.Remaining -= give
	}

	// Hand out the leftover one minimum at a time, in session order, until no
	// session's minimum fits what is left.
	for changed := true; changed; {
		changed = false
		for _, id := range active {
			min := minOf(id)
			if min == 0 {
				min = 1
			}
			if min > out.Remaining {
				continue
			}
			if _, ok := out.Distribution[id]; !ok {
				// A session skipped by the floored share still only enters the
				// distribution with at least its minimum, which this grants.
				out.Distribution[id] = 0
			}
			out.Distribution[id] += min
			out.Remaining -= min
			changed = true
		}
	}

	// Sessions that ended with nothing stay absent rather than mapping to 0.
	for id, value := range out.Distribution {
		if value == 0 {
			delete(out.Distribution, id)
		}
	}
	return out
}
