package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCampaignRunning rejects a start while indexing is in progress.
	ErrCampaignRunning = errors.New("indexing is already running")
	// ErrNotRunning rejects a stop while nothing is indexing.
	ErrNotRunning = errors.New("indexing is not running")
	// ErrStoppedByUser is the cancellation cause of a user stop.
	ErrStoppedByUser = errors.New("indexing stopped by user")
	// ErrInterrupted reports a canceled crawl or index run.
	ErrInterrupted = errors.New("indexing interrupted")
	// ErrFetchTimeout reports a fetch that exceeded its timeout.
	ErrFetchTimeout = errors.New("fetch timed out")
)

// ValidationError reports rejected input. No state is mutated.
type ValidationError struct {
	Msg string
}

// NewValidationError builds a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// HTTPStatusError reports a response with status >= 400.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Code)
}

// NetworkError reports a connectivity failure.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConsistencyError reports a row that went missing mid-operation.
type ConsistencyError struct {
	Entity string
	Key    string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s %q disappeared during indexing", e.Entity, e.Key)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
