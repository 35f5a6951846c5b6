// Package lookup serves word lookups over the partitions an index run wrote.
// Partitions are parsed on first use and kept in memory until a newer run
// replaces them.
package lookup

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
)

// Index is a lazily loaded, read-mostly view of a partition directory. It is
// safe for concurrent use.
type Index struct {
	dir    string
	mu     sync.RWMutex
	loaded map[byte]*partition.Partition
	// gen[i] is bumped by every Forget of letter i; a load that saw an older
	// generation is returned but not kept.
	gen    [index.Letters]uint64
	logger *slog.Logger

	afterOpen func(letter byte)
}

func NewIndex(dir string) *Index {
	return &Index{
		dir:    dir,
		loaded: make(map[byte]*partition.Partition),
		logger: slog.Default().With("component", "lookup-index"),
	}
}

// Dir returns the partition directory.
func (x *Index) Dir() string {
	return x.dir
}

// Normalize reduces a query to the form words are indexed under. An empty
// result is reported as ErrInvalidInput.
func Normalize(raw string) (string, error) {
	word := tokenizer.Normalize(raw)
	if word == "" {
		return "", fmt.Errorf("%w: %q contains no letters", apperrors.ErrInvalidInput, raw)
	}
	return word, nil
}

// Lookup returns the entry for an already normalized word.
func (x *Index) Lookup(word string) (index.WordEntry, error) {
	if word == "" {
		return index.WordEntry{}, fmt.Errorf("%w: empty word", apperrors.ErrInvalidInput)
	}
	p, err := x.Partition(word[0])
	if err != nil {
		if errors.Is(err, partition.ErrNotFound) {
			return index.WordEntry{}, fmt.Errorf("%w: %s", apperrors.ErrWordNotFound, word)
		}
		return index.WordEntry{}, err
	}
	e, ok := p.Lookup(word)
	if !ok {
		return index.WordEntry{}, fmt.Errorf("%w: %s", apperrors.ErrWordNotFound, word)
	}
	return e, nil
}

// Partition returns the parsed partition for letter, loading it if needed.
func (x *Index) Partition(letter byte) (*partition.Partition, error) {
	slot, ok := index.LetterIndex(letter)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a partition letter", apperrors.ErrInvalidInput, letter)
	}
	x.mu.RLock()
	p, ok := x.loaded[letter]
	gen := x.gen[slot]
	x.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := partition.Open(x.dir, letter)
	if x.afterOpen != nil {
		x.afterOpen(letter)
	}
	if err != nil {
		return nil, err
	}
	x.mu.Lock()
	switch existing, ok := x.loaded[letter]; {
	case ok:
		p = existing
	case x.gen[slot] != gen:
		x.mu.Unlock()
		x.logger.Debug("partition changed while loading", "letter", string(letter))
		return p, nil
	default:
		x.loaded[letter] = p
	}
	x.mu.Unlock()
	x.logger.Debug("partition loaded", "letter", string(letter), "words", p.Len())
	return p, nil
}

// Forget drops the in-memory copy of a partition so the next read reloads it.
func (x *Index) Forget(letter byte) {
	x.mu.Lock()
	delete(x.loaded, letter)
	if slot, ok := index.LetterIndex(letter); ok {
		x.gen[slot]++
	}
	x.mu.Unlock()
}

// ForgetAll drops every loaded partition.
func (x *Index) ForgetAll() {
	x.mu.Lock()
	x.loaded = make(map[byte]*partition.Partition)
	for i := range x.gen {
		x.gen[i]++
	}
	x.mu.Unlock()
}

// Loaded returns how many partitions are currently held in memory.
func (x *Index) Loaded() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.loaded)
}
