package transcriptpg

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the client configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStorageError is returned when a storage operation failed
	ErrStorageError = errors.New("storage operation failed")

	// ErrToolNotMatched is returned by HandlePostToolUse when the tool name
	// does not match the configured pattern and nothing was done
	ErrToolNotMatched = errors.New("tool not matched")

	// ErrNoStore is returned by History when no store is configured
	ErrNoStore = errors.New("no store configured")
)

// Error represents an error with additional context
type Error struct {
	Op        string         // Operation that failed
	Err       error          // Underlying error
	SessionID string         // Session ID if applicable
	Context   map[string]any // Additional context
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s (session=%s): %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a new Error
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewErrorWithSession creates a new Error with session ID
func NewErrorWithSession(op string, sessionID string, err error) *Error {
	return &Error{
		Op:        op,
		Err:       err,
		SessionID: sessionID,
	}
}
