package store

import (
	"context"
	"slices"
)

// FirstPresetNumber is allocated when no preset exists yet.
const FirstPresetNumber = 10

// FindNextFreeNumber returns FirstPresetNumber for an empty set, otherwise
// the first integer from min(existing) to max(existing)+1 not in the set.
func FindNextFreeNumber(existing []int) int {
	if len(existing) == 0 {
		return FirstPresetNumber
	}

	used := make(map[int]struct{}, len(existing))
	for _, n := range existing {
		used[n] = struct{}{}
	}

	lo, hi := slices.Min(existing), slices.Max(existing)
	for n := lo; n <= hi+1; n++ {
		if _, ok := used[n]; !ok {
			return n
		}
	}
	// unreachable: hi+1 is never in the set
	return hi + 1
}

// Numbers returns the preset numbers used by mappings.
func Numbers(mappings map[string]Mapping) []int {
	numbers := make([]int, 0, len(mappings))
	for _, m := range mappings {
		numbers = append(numbers, m.Number)
	}
	return numbers
}

// NextNumber returns the preset number for uid: its current number when it
// is already mapped (reused=true), otherwise the next free one in the store.
func NextNumber(ctx context.Context, s MappingStore, uid string) (number int, reused bool, err error) {
	mappings, err := s.Mappings(ctx)
	if err != nil {
		return 0, false, err
	}
	if m, ok := mappings[uid]; ok && m.Number > 0 {
		return m.Number, true, nil
	}
	return FindNextFreeNumber(Numbers(mappings)), false, nil
}
