// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrAlreadyOpen    = errors.New("writer is already open")
	ErrRecordSize     = errors.New("record size mismatch")
	ErrFlushTimeout   = errors.New("timed out waiting for in-flight writers before flush")
	ErrDrainTimeout   = errors.New("timed out draining in-flight writers")
	ErrChannelClosed  = errors.New("storage channel is closed")
	ErrChannelNotOpen = errors.New("storage channel is not open")
	ErrConnectionLost = errors.New("connection lost")
)

// StorageError represents a storage channel operation failure.
type StorageError struct {
	Backend   string
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: backend=%s operation=%s path=%s: %v",
		e.Backend, e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// FlushError represents a failed flush of a retired buffer.
type FlushError struct {
	Buffer int
	Bytes  int
	Err    error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush error: buffer=%d bytes=%d: %v", e.Buffer, e.Bytes, e.Err)
}

func (e *FlushError) Unwrap() error {
	return e.Err
}

// ValidationError represents an invalid configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field=%s: %s", e.Field, e.Reason)
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.IsRetryable()
	}

	if errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
// The writer itself never retries; callers that replay captures may.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "publish"
}

// IsRetryable determines if a FlushError is retryable.
func (e *FlushError) IsRetryable() bool {
	return IsRetryable(e.Err)
}
