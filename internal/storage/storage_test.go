package storage

import (
	"bytes"
	stderrors "errors"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/internal/errors"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	mu                 sync.Mutex
	segments           map[string]int
	storageDurations   []float64
	storageErrors      int
	lastErrorBackend   string
	lastErrorOperation string
}

func newMockMetrics() *mockMetricsCollector {
	return &mockMetricsCollector{segments: make(map[string]int)}
}

func (m *mockMetricsCollector) IncSegmentsWritten(backend string, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments[backend+"/"+status]++
}

func (m *mockMetricsCollector) ObserveStorageWriteDuration(backend string, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageDurations = append(m.storageDurations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend string, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBucket records object uploads.
type fakeBucket struct {
	objects map[string][]byte
	keys    []string
	err     error
}

func (b *fakeBucket) put(_ context.Context, key string, body []byte) error {
	if b.err != nil {
		return b.err
	}
	if b.objects == nil {
		b.objects = make(map[string][]byte)
	}
	b.objects[key] = bytes.Clone(body)
	b.keys = append(b.keys, key)
	return nil
}

func TestObjectChannel_Lifecycle(t *testing.T) {
	bucket := &fakeBucket{}
	metrics := newMockMetrics()
	ch, err := newObjectChannel("s3", "s3", "none", bucket.put, testLogger(), metrics)
	if err != nil {
		t.Fatalf("newObjectChannel() error = %v", err)
	}

	if err := ch.Write(context.Background(), []byte("early")); err != errors.ErrChannelNotOpen {
		t.Fatalf("Write() before Open error = %v, want ErrChannelNotOpen", err)
	}

	if err := ch.Open(context.Background(), "s3://bucket/captures/run1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sessionID := ch.SessionID()
	if sessionID == "" {
		t.Fatal("expected session id after Open")
	}

	for _, seg := range []string{"first", "second"} {
		if err := ch.Write(context.Background(), []byte(seg)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	wantKeys := []string{
		"captures/run1/" + sessionID + "/segment-000000.ti",
		"captures/run1/" + sessionID + "/segment-000001.ti",
	}
	for i, key := range wantKeys {
		if bucket.keys[i] != key {
			t.Errorf("key[%d] = %s, want %s", i, bucket.keys[i], key)
		}
	}
	if string(bucket.objects[wantKeys[1]]) != "second" {
		t.Errorf("object body = %q, want %q", bucket.objects[wantKeys[1]], "second")
	}
	if ch.Segments() != 2 {
		t.Errorf("Segments() = %d, want 2", ch.Segments())
	}
	if metrics.segments["s3/success"] != 2 {
		t.Errorf("successful segments = %d, want 2", metrics.segments["s3/success"])
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := ch.Write(context.Background(), []byte("late")); err != errors.ErrChannelClosed {
		t.Errorf("Write() after Close error = %v, want ErrChannelClosed", err)
	}

	// A new session gets a new prefix.
	if err := ch.Open(context.Background(), "captures/run1"); err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if ch.SessionID() == sessionID {
		t.Error("expected a new session id after reopen")
	}
	if ch.Segments() != 0 {
		t.Errorf("Segments() after reopen = %d, want 0", ch.Segments())
	}
}

func TestObjectChannel_Compression(t *testing.T) {
	bucket := &fakeBucket{}
	ch, err := newObjectChannel("minio", "s3", "zstd", bucket.put, testLogger(), nil)
	if err != nil {
		t.Fatalf("newObjectChannel() error = %v", err)
	}
	if err := ch.Open(context.Background(), "captures"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	raw := bytes.Repeat([]byte("tick"), 1024)
	if err := ch.Write(context.Background(), raw); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	key := bucket.keys[0]
	if !bytes.HasSuffix([]byte(key), []byte(".ti.zst")) {
		t.Errorf("key %s should carry the .ti.zst extension", key)
	}

	got, err := encoder.ReadFrame(bytes.NewReader(bucket.objects[key]), encoder.CompressionZstd)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Error("decoded segment does not match the written buffer")
	}
}

func TestObjectChannel_UploadFailure(t *testing.T) {
	bucket := &fakeBucket{err: fmt.Errorf("throttled")}
	metrics := newMockMetrics()
	ch, err := newObjectChannel("gcs", "gs", "", bucket.put, testLogger(), metrics)
	if err != nil {
		t.Fatalf("newObjectChannel() error = %v", err)
	}
	if err := ch.Open(context.Background(), "gs://bucket/captures"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	err = ch.Write(context.Background(), []byte("data"))
	var storageErr *errors.StorageError
	if !stderrors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Backend != "gcs" || storageErr.Operation != "upload" {
		t.Errorf("StorageError = %+v", storageErr)
	}
	if !errors.IsRetryable(err) {
		t.Error("upload failures should be retryable")
	}
	if metrics.lastErrorOperation != "upload" {
		t.Errorf("last error operation = %s, want upload", metrics.lastErrorOperation)
	}
	if ch.Segments() != 0 {
		t.Error("failed upload must not advance the segment sequence")
	}
}

func TestObjectChannel_InvalidCompression(t *testing.T) {
	bucket := &fakeBucket{}
	if _, err := newObjectChannel("s3", "s3", "brotli", bucket.put, testLogger(), nil); err == nil {
		t.Error("expected error for unsupported compression")
	}
}

func TestBackendConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"s3 valid", S3Config{Bucket: "captures", Region: "us-east-1"}.Validate(), false},
		{"s3 empty bucket", S3Config{Region: "us-east-1"}.Validate(), true},
		{"s3 empty region", S3Config{Bucket: "captures"}.Validate(), true},
		{"gcs valid", GCSConfig{Bucket: "captures"}.Validate(), false},
		{"gcs empty bucket", GCSConfig{ProjectID: "p"}.Validate(), true},
		{"azure valid", AzureConfig{AccountName: "acct", AccountKey: "key", ContainerName: "captures"}.Validate(), false},
		{"azure missing key", AzureConfig{AccountName: "acct", ContainerName: "captures"}.Validate(), true},
		{"minio valid", MinIOConfig{Endpoint: "localhost:9000", Bucket: "captures"}.Validate(), false},
		{"minio missing endpoint", MinIOConfig{Bucket: "captures"}.Validate(), true},
		{"kafka valid", KafkaConfig{BootstrapServers: []string{"localhost:9092"}}.Validate(), false},
		{"kafka missing brokers", KafkaConfig{}.Validate(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", tt.err, tt.wantErr)
			}
			var vErr *errors.ValidationError
			if tt.err != nil && !stderrors.As(tt.err, &vErr) {
				t.Errorf("expected ValidationError, got %T", tt.err)
			}
		})
	}
}

func TestAzureConfig_ConnectionString(t *testing.T) {
	cfg := AzureConfig{AccountName: "devstoreaccount1", AccountKey: "key"}
	if got := cfg.ConnectionString(); !bytes.Contains([]byte(got), []byte("EndpointSuffix=core.windows.net")) {
		t.Errorf("default connection string = %s", got)
	}

	cfg.Endpoint = "http://127.0.0.1:10000/devstoreaccount1"
	if got := cfg.ConnectionString(); !bytes.Contains([]byte(got), []byte("BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1")) {
		t.Errorf("emulator connection string = %s", got)
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		compression encoder.Compression
		want        string
	}{
		{encoder.CompressionNone, "application/octet-stream"},
		{encoder.CompressionZstd, "application/zstd"},
		{encoder.CompressionGzip, "application/gzip"},
		{encoder.CompressionLZ4, "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := contentType(tt.compression); got != tt.want {
			t.Errorf("contentType(%s) = %s, want %s", tt.compression, got, tt.want)
		}
	}
}
