// Package partition reads and writes the per-letter output files. A partition
// is <dir>/<letter>.txt holding one line per word, `word:[id1 id2 ... idk]`,
// ordered by file count descending then word ascending.
package partition

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
)

const fileExt = ".txt"

// FileName returns the partition file name for letter, e.g. "a.txt".
func FileName(letter byte) string {
	return string(letter) + fileExt
}

// Path returns the partition path for letter inside dir.
func Path(dir string, letter byte) string {
	return filepath.Join(dir, FileName(letter))
}

// AppendLine appends the formatted line for e, including the trailing newline.
func AppendLine(dst []byte, e *index.WordEntry) []byte {
	dst = append(dst, e.Word...)
	dst = append(dst, ':', '[')
	for i, id := range e.FileIDs {
		if i > 0 {
			dst = append(dst, ' ')
		}
		dst = strconv.AppendInt(dst, int64(id), 10)
	}
	return append(dst, ']', '\n')
}

// FormatLine renders e as a partition line without the newline.
func FormatLine(e *index.WordEntry) string {
	line := AppendLine(nil, e)
	return string(line[:len(line)-1])
}

// Writer emits partitions into a single output directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer that writes partitions into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Remove deletes the partition for letter left by an earlier run. It reports
// whether a file was removed; a missing file is not an error. Errors wrap
// ErrOutputPartition.
func (w *Writer) Remove(letter byte) (string, bool, error) {
	if _, ok := index.LetterIndex(letter); !ok {
		return "", false, fmt.Errorf("%w: invalid letter %q", apperrors.ErrOutputPartition, letter)
	}
	path := Path(w.dir, letter)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return path, false, nil
		}
		return path, false, fmt.Errorf("%w: removing stale %s: %w", apperrors.ErrOutputPartition, path, err)
	}
	return path, true, nil
}

// Write creates the partition for letter containing entries, in the order
// given. The file is written to a .tmp sibling and renamed into place, so a
// reader never sees a half-written partition. Errors wrap ErrOutputPartition.
func (w *Writer) Write(letter byte, entries []index.WordEntry) (string, error) {
	if _, ok := index.LetterIndex(letter); !ok {
		return "", fmt.Errorf("%w: invalid letter %q", apperrors.ErrOutputPartition, letter)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: cannot write empty partition %q", apperrors.ErrOutputPartition, letter)
	}
	finalPath := Path(w.dir, letter)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", apperrors.ErrOutputPartition, tmpPath, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	var line []byte
	for i := range entries {
		line = AppendLine(line[:0], &entries[i])
		if _, err := bw.Write(line); err != nil {
			os.Remove(tmpPath)
			return "", fmt.Errorf("%w: writing %s: %w", apperrors.ErrOutputPartition, tmpPath, err)
		}
	}
	if err := bw.Flush(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: flushing %s: %w", apperrors.ErrOutputPartition, tmpPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: closing %s: %w", apperrors.ErrOutputPartition, tmpPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: renaming %s: %w", apperrors.ErrOutputPartition, tmpPath, err)
	}
	return finalPath, nil
}
