package validator

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/jittakal/tiwriter/internal/errors"
)

func TestGeometryValidator_Validate(t *testing.T) {
	v := NewGeometryValidator()

	tests := []struct {
		name      string
		geometry  Geometry
		wantErr   bool
		wantField string
	}{
		{
			name:     "valid geometry",
			geometry: Geometry{BufferCount: 2, RecordsPerBuffer: 4, RecordSize: 16},
			wantErr:  false,
		},
		{
			name:      "single buffer",
			geometry:  Geometry{BufferCount: 1, RecordsPerBuffer: 4, RecordSize: 16},
			wantErr:   true,
			wantField: "buffer_count",
		},
		{
			name:      "zero records per buffer",
			geometry:  Geometry{BufferCount: 2, RecordsPerBuffer: 0, RecordSize: 16},
			wantErr:   true,
			wantField: "records_per_buffer",
		},
		{
			name:      "negative record size",
			geometry:  Geometry{BufferCount: 2, RecordsPerBuffer: 4, RecordSize: -1},
			wantErr:   true,
			wantField: "record_size",
		},
		{
			name:     "buffer at size limit",
			geometry: Geometry{BufferCount: 2, RecordsPerBuffer: 1 << 20, RecordSize: 1 << 10},
			wantErr:  false,
		},
		{
			name:      "too many buffers",
			geometry:  Geometry{BufferCount: MaxBufferCount + 1, RecordsPerBuffer: 1, RecordSize: 1},
			wantErr:   true,
			wantField: "buffer_count",
		},
		{
			name:     "pool at size limit",
			geometry: Geometry{BufferCount: 4, RecordsPerBuffer: 1 << 20, RecordSize: 1 << 10},
			wantErr:  false,
		},
		{
			name:      "pool over size limit",
			geometry:  Geometry{BufferCount: 5, RecordsPerBuffer: 1 << 20, RecordSize: 1 << 10},
			wantErr:   true,
			wantField: "buffer_count",
		},
		{
			name:      "buffer over size limit",
			geometry:  Geometry{BufferCount: 2, RecordsPerBuffer: 1 << 20, RecordSize: 1<<10 + 1},
			wantErr:   true,
			wantField: "records_per_buffer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.geometry)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			var vErr *apperrors.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestGeometryValidator_ValidateWrapPolicy(t *testing.T) {
	v := NewGeometryValidator()

	tests := []struct {
		name    string
		policy  string
		timeout time.Duration
		wantErr bool
	}{
		{"lossy", "lossy", 0, false},
		{"empty defaults to lossy", "", 0, false},
		{"backpressure with timeout", "backpressure", time.Second, false},
		{"backpressure case insensitive", "BackPressure", time.Second, false},
		{"backpressure without timeout", "backpressure", 0, true},
		{"unknown policy", "block", time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateWrapPolicy(tt.policy, tt.timeout)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWrapPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
