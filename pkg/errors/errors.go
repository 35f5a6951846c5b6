// Package errors defines the sentinel errors shared by the pipeline and the
// lookup service, an AppError wrapper carrying a process exit code, and the
// mappings from an error to an exit status or an HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrManifest        = errors.New("manifest unreadable")
	ErrInputFile       = errors.New("input file unreadable")
	ErrTokenTooLong    = errors.New("token exceeds maximum length")
	ErrOutputPartition = errors.New("output partition not writable")
	ErrWordNotFound    = errors.New("word not found")
	ErrInternal        = errors.New("internal error")
)

// Process exit codes reported by the indexer CLI.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUsage     = 2
	ExitManifest  = 3
	ExitInputFile = 4
	ExitOutput    = 5
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode maps err to the status the indexer process should exit with.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.ExitCode != 0 {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, ErrManifest), errors.Is(err, ErrInvalidManifest):
		return ExitManifest
	case errors.Is(err, ErrInputFile), errors.Is(err, ErrTokenTooLong):
		return ExitInputFile
	case errors.Is(err, ErrOutputPartition):
		return ExitOutput
	default:
		return ExitFailure
	}
}

func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrWordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
