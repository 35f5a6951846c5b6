package index

// PartialIndex is one mapper's word table. It is written by exactly one
// goroutine during the map phase and has no lock: once the phase barrier
// opens it is only read, concurrently, by reducers.
//
// Entries are bucketed by first letter so a reducer claiming letter L reads
// one bucket instead of filtering the whole table.
type PartialIndex struct {
	buckets [Letters]map[string]*WordEntry
	words   int
	adds    int64

	// adds made for lastFile, so a rollback can take them back out
	lastFile int
	lastAdds int64
}

func NewPartialIndex() *PartialIndex {
	p := &PartialIndex{}
	for i := range p.buckets {
		p.buckets[i] = make(map[string]*WordEntry)
	}
	return p
}

// Add records that word occurs in fileID. word must already be normalized;
// words not starting with a..z are rejected and Add returns false.
func (p *PartialIndex) Add(word string, fileID int) bool {
	if word == "" {
		return false
	}
	b, ok := LetterIndex(word[0])
	if !ok {
		return false
	}
	p.adds++
	if fileID != p.lastFile {
		p.lastFile, p.lastAdds = fileID, 0
	}
	p.lastAdds++
	bucket := p.buckets[b]
	if entry, exists := bucket[word]; exists {
		entry.AddFileID(fileID)
		return true
	}
	bucket[word] = &WordEntry{
		Word:    word,
		FileIDs: []int{fileID},
	}
	p.words++
	return true
}

// Bucket returns the entries whose word starts with letter. The map is the
// index's own storage and must not be modified.
func (p *PartialIndex) Bucket(letter byte) map[string]*WordEntry {
	b, ok := LetterIndex(letter)
	if !ok {
		return nil
	}
	return p.buckets[b]
}

// Get returns the entry for word, if present.
func (p *PartialIndex) Get(word string) (*WordEntry, bool) {
	if word == "" {
		return nil, false
	}
	bucket := p.Bucket(word[0])
	if bucket == nil {
		return nil, false
	}
	entry, ok := bucket[word]
	return entry, ok
}

// Len returns the number of distinct words.
func (p *PartialIndex) Len() int {
	return p.words
}

// Adds returns how many tokens were accepted, duplicates included.
func (p *PartialIndex) Adds() int64 {
	return p.adds
}

// DropFile removes fileID from every entry, deletes entries left empty and
// takes the file's tokens back out of Adds. It relies on a mapper adding files
// in increasing id order, so fileID can only be the last id of an entry. It
// returns the number of entries touched.
func (p *PartialIndex) DropFile(fileID int) int {
	if fileID == p.lastFile {
		p.adds -= p.lastAdds
		p.lastAdds = 0
	}
	touched := 0
	for _, bucket := range p.buckets {
		for word, e := range bucket {
			n := len(e.FileIDs)
			if n == 0 || e.FileIDs[n-1] != fileID {
				continue
			}
			touched++
			if n == 1 {
				delete(bucket, word)
				p.words--
				continue
			}
			e.FileIDs = e.FileIDs[:n-1]
		}
	}
	return touched
}
