// Package manifest reads the list of input files for a run. A manifest is a
// non-negative integer N followed by N whitespace-separated paths.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
)

// Load opens and parses the manifest at path. An unreadable file yields an
// error wrapping ErrManifest; a malformed one wraps ErrInvalidManifest.
func Load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrManifest, apperrors.ExitManifest, "opening %s: %v", path, err)
	}
	defer f.Close()

	files, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return files, nil
}

// Parse reads the count and exactly that many paths from r. Tokens after the
// Nth path are ignored.
func Parse(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	scanner.Split(bufio.ScanWords)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, readError(err)
		}
		return nil, fmt.Errorf("%w: missing file count", apperrors.ErrInvalidManifest)
	}
	n, err := strconv.Atoi(scanner.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: file count %q is not an integer", apperrors.ErrInvalidManifest, scanner.Text())
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative file count %d", apperrors.ErrInvalidManifest, n)
	}

	files := make([]string, 0, min(n, 1<<16))
	for len(files) < n && scanner.Scan() {
		files = append(files, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, readError(err)
	}
	if len(files) < n {
		return nil, fmt.Errorf("%w: expected %d paths, found %d", apperrors.ErrInvalidManifest, n, len(files))
	}
	return files, nil
}

func readError(err error) error {
	if errors.Is(err, bufio.ErrTooLong) {
		return fmt.Errorf("%w: path too long", apperrors.ErrInvalidManifest)
	}
	return apperrors.Newf(apperrors.ErrManifest, apperrors.ExitManifest, "reading manifest: %v", err)
}
