package partition

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
)

// ErrNotFound is returned by Open when no partition exists for a letter.
var ErrNotFound = errors.New("partition not found")

// Partition is a parsed partition file.
type Partition struct {
	Letter  byte
	Path    string
	entries []index.WordEntry
	byWord  map[string]int
}

// Open reads and parses the partition for letter in dir.
func Open(dir string, letter byte) (*Partition, error) {
	path := Path(dir, letter)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening partition: %w", err)
	}
	defer f.Close()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	p := &Partition{
		Letter:  letter,
		Path:    path,
		entries: entries,
		byWord:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		p.byWord[e.Word] = i
	}
	return p, nil
}

// Parse reads partition lines from r.
func Parse(r io.Reader) ([]index.WordEntry, error) {
	var entries []index.WordEntry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading partition: %w", err)
	}
	return entries, nil
}

// ParseLine parses a single `word:[id1 id2]` line.
func ParseLine(line string) (index.WordEntry, error) {
	word, rest, ok := strings.Cut(line, ":")
	if !ok || word == "" {
		return index.WordEntry{}, fmt.Errorf("malformed line %q", line)
	}
	if len(rest) < 2 || rest[0] != '[' || rest[len(rest)-1] != ']' {
		return index.WordEntry{}, fmt.Errorf("malformed id list in %q", line)
	}
	fields := strings.Fields(rest[1 : len(rest)-1])
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return index.WordEntry{}, fmt.Errorf("bad file id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return index.WordEntry{Word: word, FileIDs: ids}, nil
}

// Lookup returns the entry for word.
func (p *Partition) Lookup(word string) (index.WordEntry, bool) {
	i, ok := p.byWord[word]
	if !ok {
		return index.WordEntry{}, false
	}
	return p.entries[i], true
}

// Entries returns the entries in file order.
func (p *Partition) Entries() []index.WordEntry {
	return p.entries
}

// Len returns the number of words in the partition.
func (p *Partition) Len() int {
	return len(p.entries)
}

// List returns the letters that have a partition file in dir, in order.
func List(dir string) ([]byte, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing partitions: %w", err)
	}
	var letters []byte
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || len(name) != len(fileExt)+1 || !strings.HasSuffix(name, fileExt) {
			continue
		}
		if _, ok := index.LetterIndex(name[0]); ok {
			letters = append(letters, name[0])
		}
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return letters, nil
}
