package compaction

import (
	"errors"
	"fmt"
)

// Sentinel errors for compaction operations.
var (
	// ErrInvalidConfig indicates invalid compaction configuration.
	ErrInvalidConfig = errors.New("invalid compaction configuration")

	// ErrTranscriptNotFound indicates the transcript file does not exist.
	// Compact treats this as a no-op; Stats returns it.
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrIO indicates reading or writing the transcript failed.
	ErrIO = errors.New("transcript i/o failed")

	// ErrConcurrentModification indicates the transcript changed during
	// compaction in a way other than an append.
	ErrConcurrentModification = errors.New("transcript modified during compaction")

	// ErrTokenCountingFailed indicates token counting failed.
	ErrTokenCountingFailed = errors.New("token counting failed")
)

// CompactionError provides structured error context for compaction operations.
type CompactionError struct {
	// Op is the operation that failed (e.g., "Read", "Write", "Lock")
	Op string

	// Path is the transcript path if applicable
	Path string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *CompactionError) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.Path != "" {
		msg += fmt.Sprintf(" for %s", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *CompactionError) Unwrap() error {
	return e.Err
}

// NewCompactionError creates a new CompactionError with the given operation and underlying error.
func NewCompactionError(op string, err error) *CompactionError {
	return &CompactionError{
		Op:      op,
		Err:     err,
		Context: make(map[string]any),
	}
}

// WithPath sets the transcript path on the error and returns the error for chaining.
func (e *CompactionError) WithPath(path string) *CompactionError {
	e.Path = path
	return e
}

// WithContext adds a key-value pair to the error context and returns the error for chaining.
func (e *CompactionError) WithContext(key string, value any) *CompactionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ioError wraps an I/O failure so that errors.Is(err, ErrIO) holds while
// the underlying cause stays reachable.
func ioError(op, path string, err error) error {
	return NewCompactionError(op, fmt.Errorf("%w: %w", ErrIO, err)).WithPath(path)
}
