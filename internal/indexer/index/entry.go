// Package index holds the in-memory structures of the pipeline: the
// per-mapper PartialIndex and the reducer-side Merger that unifies entries
// for one letter across all partial indexes.
package index

import (
	"slices"
	"strings"
)

// Letters is the number of output partitions, one per letter a..z.
const Letters = 26

// WordEntry records the files a word occurs in. FileIDs holds no duplicates.
type WordEntry struct {
	Word    string `json:"word"`
	FileIDs []int  `json:"file_ids"`
}

// FileCount is the word's document frequency.
func (e *WordEntry) FileCount() int {
	return len(e.FileIDs)
}

// AddFileID appends id unless it is already present and reports whether it
// was added. A mapper adds every occurrence of a file's words before moving
// to its next file, so a repeat is almost always the last element.
func (e *WordEntry) AddFileID(id int) bool {
	if n := len(e.FileIDs); n > 0 && e.FileIDs[n-1] == id {
		return false
	}
	if slices.Contains(e.FileIDs, id) {
		return false
	}
	e.FileIDs = append(e.FileIDs, id)
	return true
}

// Compare orders entries by file count descending, then word ascending.
func Compare(a, b *WordEntry) int {
	if a.FileCount() != b.FileCount() {
		if a.FileCount() > b.FileCount() {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Word, b.Word)
}

// LetterIndex maps 'a'..'z' to 0..25 and reports false for anything else.
func LetterIndex(c byte) (int, bool) {
	if c < 'a' || c > 'z' {
		return 0, false
	}
	return int(c - 'a'), true
}
