// Package worklist flattens per-lane structure lists into one fair,
// consume-once sequence of reaction seeds.
package worklist

import (
	"math/rand"
	"sort"

	"github.com/ElioChen/iacta/pkg/xyz"
)

// Entry is one unit of reaction-construction work: a seed structure and the
// lane (constraint-sequence index) it came from.
type Entry struct {
	Lane      int
	Structure xyz.Structure
}

// Build interleaves the lanes round-robin: lanes are swept in ascending lane
// order, each non-empty lane contributing its front structure once per
// sweep, until all lanes are drained. Every lane therefore contributes its
// j-th structure before any lane contributes its (j+1)-th, so no lane can
// monopolize the early execution slots.
func Build(lanes map[int][]xyz.Structure) []Entry {
	order := make([]int, 0, len(lanes))
	for lane := range lanes {
		order = append(order, lane)
	}
	sort.Ints(order)

	remaining := make(map[int][]xyz.Structure, len(lanes))
	total := 0
	for lane, ls := range lanes {
		remaining[lane] = ls
		total += len(ls)
	}

	out := make([]Entry, 0, total)
	for len(order) > 0 {
		active := order[:0:len(order)]
		for _, lane := range order {
			ls := remaining[lane]
			if len(ls) == 0 {
				continue
			}
			out = append(out, Entry{Lane: lane, Structure: ls[0]})
			remaining[lane] = ls[1:]
			if len(ls) > 1 {
				active = append(active, lane)
			}
		}
		order = active
	}
	return out
}

// Shuffle permutes entries in place. The worklist is shuffled after building
// so early engine load is not biased by lane identity.
func Shuffle(entries []Entry, rng *rand.Rand) {
	rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
}
