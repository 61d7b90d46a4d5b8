package domain

import "sort"

// SortNewestFirst orders entries by descending timestamp. Ties keep their
// relative order so repeated runs produce identical sequences.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Published.After(entries[j].Published)
	})
}

// SortOldestFirst orders entries by ascending timestamp, ties by link
func SortOldestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Published.Equal(entries[j].Published) {
			return entries[i].Link < entries[j].Link
		}
		return entries[i].Published.Before(entries[j].Published)
	})
}

// Dedupe drops entries whose Key was already seen, keeping the first
func Dedupe(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
