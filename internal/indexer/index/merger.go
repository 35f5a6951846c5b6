package index

import (
	"slices"
	"sort"
)

// Merger unifies the entries of one letter across partial indexes. It is
// owned by a single reducer and discarded once the partition is written.
type Merger struct {
	entries map[string]*WordEntry
}

func NewMerger() *Merger {
	return &Merger{entries: make(map[string]*WordEntry)}
}

// Merge folds e into the merger. The first sighting of a word copies its ids
// so the partial index is never written through a shared backing array.
func (m *Merger) Merge(e *WordEntry) {
	if merged, ok := m.entries[e.Word]; ok {
		merged.FileIDs = append(merged.FileIDs, e.FileIDs...)
		return
	}
	m.entries[e.Word] = &WordEntry{
		Word:    e.Word,
		FileIDs: slices.Clone(e.FileIDs),
	}
}

// MergeBucket merges every entry of a partial index bucket.
func (m *Merger) MergeBucket(bucket map[string]*WordEntry) {
	for _, e := range bucket {
		m.Merge(e)
	}
}

// Len returns the number of distinct words merged so far.
func (m *Merger) Len() int {
	return len(m.entries)
}

// Sorted returns the merged entries in partition order with each id list
// sorted ascending and de-duplicated.
func (m *Merger) Sorted() []WordEntry {
	result := make([]WordEntry, 0, len(m.entries))
	for _, e := range m.entries {
		slices.Sort(e.FileIDs)
		e.FileIDs = slices.Compact(e.FileIDs)
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool {
		return Compare(&result[i], &result[j]) < 0
	})
	return result
}
