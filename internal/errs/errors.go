// Package errs defines the error taxonomy surfaced by the connector.
// Every error crossing the connector boundary renders as a single line.
package errs

import (
	"errors"
	"strings"
)

// Stage identifies the step of a query execution that failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageCount    Stage = "count"
	StageExecute  Stage = "execute"
	StageFetch    Stage = "fetch"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// SingleLine collapses carriage returns and newlines into spaces.
func SingleLine(s string) string {
	return lineBreaks.Replace(s)
}

// Message returns the single-line message of err, or "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return SingleLine(err.Error())
}

// ConfigurationError reports a malformed or missing connection option.
type ConfigurationError struct {
	Field string
	Cause error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + Message(e.Cause)
	}
	return "invalid configuration: " + e.Field + ": " + Message(e.Cause)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// ConnectionError reports a failure to create a pool or acquire a session.
type ConnectionError struct {
	Backend string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return Message(e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// ExecutionError reports a failure of the count query, the main query or
// the first fetch.
type ExecutionError struct {
	Stage Stage
	Cause error
}

func (e *ExecutionError) Error() string {
	return Message(e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// StreamError reports a failed fetch after the first batch was delivered.
type StreamError struct {
	// Batch is the zero-based index of the batch that could not be fetched.
	Batch int
	Cause error
}

func (e *StreamError) Error() string {
	return Message(e.Cause)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// CleanupError reports a failure closing a cursor or session.
type CleanupError struct {
	Resource string
	Cause    error
}

func (e *CleanupError) Error() string {
	return "close " + e.Resource + ": " + Message(e.Cause)
}

func (e *CleanupError) Unwrap() error {
	return e.Cause
}

// IsCleanup reports whether err is (or wraps) a CleanupError.
func IsCleanup(err error) bool {
	var ce *CleanupError
	return errors.As(err, &ce)
}
