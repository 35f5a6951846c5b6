// Package tokenizer turns raw file contents into index words. Scan yields
// whitespace-delimited tokens in file order and Normalize reduces a token to
// its lower-case ASCII letters.
package tokenizer

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
)

const readBufferSize = 64 * 1024

// Normalize drops every byte that is not an ASCII letter and lower-cases the
// rest. "Hello," becomes "hello"; "--" becomes "".
func Normalize(token string) string {
	var buf []byte
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z':
			if buf != nil {
				buf = append(buf, c)
			}
		case c >= 'A' && c <= 'Z':
			if buf == nil {
				buf = make([]byte, i, len(token))
				copy(buf, token[:i])
			}
			buf = append(buf, c+('a'-'A'))
		default:
			if buf == nil {
				buf = make([]byte, i, len(token))
				copy(buf, token[:i])
			}
		}
	}
	if buf == nil {
		return token
	}
	return string(buf)
}

// Scan calls fn for each whitespace-delimited token read from r, in order.
// Tokens are produced lazily, one buffered read at a time. A token longer than
// maxTokenBytes yields an error wrapping ErrTokenTooLong.
func Scan(r io.Reader, maxTokenBytes int, fn func(token string)) error {
	// The scanner's buffer is capped at the token bound, so reads go through
	// a larger bufio.Reader to keep syscalls coarse.
	scanner := bufio.NewScanner(bufio.NewReaderSize(r, readBufferSize))
	scanner.Buffer(make([]byte, 0, min(maxTokenBytes+1, readBufferSize)), maxTokenBytes+1)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		token := scanner.Bytes()
		if len(token) > maxTokenBytes {
			return fmt.Errorf("%w: %d bytes (limit %d)", apperrors.ErrTokenTooLong, len(token), maxTokenBytes)
		}
		fn(string(token))
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w: limit %d bytes", apperrors.ErrTokenTooLong, maxTokenBytes)
		}
		return fmt.Errorf("scanning tokens: %w", err)
	}
	return nil
}
