package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrAlreadyOpen", ErrAlreadyOpen},
		{"ErrRecordSize", ErrRecordSize},
		{"ErrFlushTimeout", ErrFlushTimeout},
		{"ErrDrainTimeout", ErrDrainTimeout},
		{"ErrChannelClosed", ErrChannelClosed},
		{"ErrChannelNotOpen", ErrChannelNotOpen},
		{"ErrConnectionLost", ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have an error message", tt.name)
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	baseErr := errors.New("disk full")
	storageErr := &StorageError{
		Backend:   "file",
		Operation: "write",
		Path:      "/data/capture.ti",
		Err:       baseErr,
	}

	if storageErr.Error() == "" {
		t.Error("StorageError should have an error message")
	}

	if !errors.Is(storageErr, baseErr) {
		t.Error("StorageError should wrap base error")
	}
}

func TestFlushError(t *testing.T) {
	baseErr := &StorageError{Backend: "s3", Operation: "upload", Err: errors.New("throttled")}
	flushErr := &FlushError{Buffer: 1, Bytes: 64, Err: baseErr}

	if flushErr.Error() == "" {
		t.Error("FlushError should have an error message")
	}

	var storageErr *StorageError
	if !errors.As(flushErr, &storageErr) {
		t.Fatal("FlushError should unwrap to StorageError")
	}
	if storageErr.Backend != "s3" {
		t.Errorf("Backend = %s, want s3", storageErr.Backend)
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Field:  "writer.buffer_count",
		Reason: "must be at least 2",
	}

	if err.Error() == "" {
		t.Error("ValidationError should have an error message")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
		{
			name: "storage write error is retryable",
			err:  &StorageError{Operation: "write", Path: "/tmp/file", Err: errors.New("failed")},
			want: true,
		},
		{
			name: "storage open error is not retryable",
			err:  &StorageError{Operation: "open", Path: "/tmp/file", Err: errors.New("denied")},
			want: false,
		},
		{
			name: "wrapped storage error is retryable",
			err:  fmt.Errorf("flush: %w", &StorageError{Operation: "publish", Err: errors.New("broker down")}),
			want: true,
		},
		{
			name: "flush error inherits from cause",
			err:  &FlushError{Buffer: 0, Bytes: 16, Err: ErrConnectionLost},
			want: true,
		},
		{
			name: "connection lost is retryable",
			err:  ErrConnectionLost,
			want: true,
		},
		{
			name: "validation error is not retryable",
			err:  &ValidationError{Field: "record_size", Reason: "missing"},
			want: false,
		},
		{
			name: "generic error is not retryable",
			err:  errors.New("generic error"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
