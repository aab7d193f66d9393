package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jittakal/tiwriter/internal/config/dto"
	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/internal/storage"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("expected non-nil loader")
	}
	if loader.v == nil {
		t.Fatal("expected non-nil viper instance")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}
	return configFile
}

func TestLoader_LoadWithValidConfig(t *testing.T) {
	configFile := writeConfig(t, `
application:
  name: test-capture

writer:
  buffer_count: 8
  records_per_buffer: 1024
  record_size: 32
  wrap_policy: backpressure
  wrap_timeout_ms: 500

storage:
  backend: file
  compression: zstd
  path: runs/capture.ti
  file:
    base_path: /tmp/test

load:
  producers: 16
  records_per_producer: 5000
  verify: true
`)

	loader := NewLoader()
	config, err := loader.Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Application.Name != "test-capture" {
		t.Errorf("Application.Name = %s, want test-capture", config.Application.Name)
	}
	if config.Writer.BufferCount != 8 || config.Writer.RecordsPerBuffer != 1024 || config.Writer.RecordSize != 32 {
		t.Errorf("Writer geometry = %+v", config.Writer)
	}
	if config.Writer.WrapTimeout() != 500*time.Millisecond {
		t.Errorf("WrapTimeout() = %v, want 500ms", config.Writer.WrapTimeout())
	}
	if config.Writer.FlushTimeoutMS != 1000 {
		t.Errorf("FlushTimeoutMS = %d, want default 1000", config.Writer.FlushTimeoutMS)
	}
	if config.Storage.Compression != "zstd" {
		t.Errorf("Storage.Compression = %s, want zstd", config.Storage.Compression)
	}
	if config.Load.Producers != 16 || !config.Load.Verify {
		t.Errorf("Load = %+v", config.Load)
	}
}

func TestLoader_LoadWithMissingFile(t *testing.T) {
	loader := NewLoader()

	// Defaults alone form a valid file capture configuration
	config, err := loader.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %s, want file", config.Storage.Backend)
	}
	if config.Writer.WrapPolicy != "lossy" {
		t.Errorf("Writer.WrapPolicy = %s, want lossy", config.Writer.WrapPolicy)
	}
}

func TestLoader_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_STORAGE_PATH", "from-env.ti")
	t.Setenv("TIWRITER_TEST_BUCKET", "capture-bucket")

	configFile := writeConfig(t, `
storage:
  backend: s3
  s3:
    bucket: ${TIWRITER_TEST_BUCKET}
    region: eu-west-1
`)

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Storage.Path != "from-env.ti" {
		t.Errorf("Storage.Path = %s, want from-env.ti", config.Storage.Path)
	}
	if config.Storage.S3.Bucket != "capture-bucket" {
		t.Errorf("Storage.S3.Bucket = %s, want capture-bucket", config.Storage.S3.Bucket)
	}
}

func TestLoader_LoadInvalidConfig(t *testing.T) {
	configFile := writeConfig(t, `
writer:
  buffer_count: 1
`)

	if _, err := NewLoader().Load(configFile); err == nil {
		t.Error("expected validation error for a single buffer")
	}
}

func validConfig() *dto.ApplicationConfig {
	return &dto.ApplicationConfig{
		Application: dto.ApplicationInfo{Name: "tiwriter"},
		Writer: dto.WriterConfig{
			BufferCount:      4,
			RecordsPerBuffer: 1024,
			RecordSize:       64,
			WrapPolicy:       "lossy",
		},
		Storage: dto.StorageConfig{
			Backend: "file",
			Path:    "capture.ti",
		},
		Load: dto.LoadConfig{Producers: 1, RecordsPerProducer: 10},
		Observability: dto.ObservabilityConfig{
			Metrics: dto.MetricsConfig{Enabled: true, Port: 9090},
			Health:  dto.HealthConfig{Enabled: true, Port: 8080},
		},
	}
}

func TestLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *dto.ApplicationConfig)
		wantErr bool
	}{
		{
			name:    "valid file backend config",
			mutate:  func(c *dto.ApplicationConfig) {},
			wantErr: false,
		},
		{
			name:    "memory backend",
			mutate:  func(c *dto.ApplicationConfig) { c.Storage.Backend = "memory" },
			wantErr: false,
		},
		{
			name: "single buffer",
			mutate: func(c *dto.ApplicationConfig) {
				c.Writer.BufferCount = 1
			},
			wantErr: true,
		},
		{
			name: "zero record size",
			mutate: func(c *dto.ApplicationConfig) {
				c.Writer.RecordSize = 0
			},
			wantErr: true,
		},
		{
			name: "backpressure without timeout",
			mutate: func(c *dto.ApplicationConfig) {
				c.Writer.WrapPolicy = "backpressure"
			},
			wantErr: true,
		},
		{
			name: "backpressure with timeout",
			mutate: func(c *dto.ApplicationConfig) {
				c.Writer.WrapPolicy = "backpressure"
				c.Writer.WrapTimeoutMS = 100
			},
			wantErr: false,
		},
		{
			name: "negative flush timeout",
			mutate: func(c *dto.ApplicationConfig) {
				c.Writer.FlushTimeoutMS = -1
			},
			wantErr: true,
		},
		{
			name: "s3 backend missing bucket",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "s3"
				c.Storage.S3.Region = "us-east-1"
			},
			wantErr: true,
		},
		{
			name: "gcs backend missing bucket",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "gcs"
			},
			wantErr: true,
		},
		{
			name: "azure backend missing account name",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "azure"
				c.Storage.Azure.ContainerName = "captures"
			},
			wantErr: true,
		},
		{
			name: "minio backend missing bucket",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "minio"
				c.Storage.MinIO.Endpoint = "localhost:9000"
			},
			wantErr: true,
		},
		{
			name: "kafka message too small for a buffer",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "kafka"
				c.Storage.Kafka.BootstrapServers = []string{"localhost:9092"}
				c.Storage.Kafka.MaxMessageBytes = 1024
			},
			wantErr: true,
		},
		{
			name: "kafka message equal to a raw buffer",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "kafka"
				c.Storage.Kafka.BootstrapServers = []string{"localhost:9092"}
				c.Storage.Kafka.MaxMessageBytes = 1024 * 64
			},
			wantErr: true,
		},
		{
			name: "kafka message without room for the frame header",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "kafka"
				c.Storage.Compression = "zstd"
				c.Storage.Kafka.BootstrapServers = []string{"localhost:9092"}
				c.Storage.Kafka.MaxMessageBytes = 1024*64 + storage.KafkaMessageOverhead
			},
			wantErr: true,
		},
		{
			name: "kafka message fits a framed buffer",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "kafka"
				c.Storage.Compression = "zstd"
				c.Storage.Kafka.BootstrapServers = []string{"localhost:9092"}
				c.Storage.Kafka.MaxMessageBytes = 1024*64 + storage.KafkaMessageOverhead + encoder.FrameHeaderSize
			},
			wantErr: false,
		},
		{
			name: "kafka backend",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "kafka"
				c.Storage.Kafka.BootstrapServers = []string{"localhost:9092"}
				c.Storage.Kafka.MaxMessageBytes = 1 << 20
			},
			wantErr: false,
		},
		{
			name: "unsupported storage backend",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Backend = "unsupported"
			},
			wantErr: true,
		},
		{
			name: "unsupported compression",
			mutate: func(c *dto.ApplicationConfig) {
				c.Storage.Compression = "brotli"
			},
			wantErr: true,
		},
		{
			name: "no producers",
			mutate: func(c *dto.ApplicationConfig) {
				c.Load.Producers = 0
			},
			wantErr: true,
		},
		{
			name: "invalid metrics port",
			mutate: func(c *dto.ApplicationConfig) {
				c.Observability.Metrics.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "disabled metrics ignores port",
			mutate: func(c *dto.ApplicationConfig) {
				c.Observability.Metrics.Enabled = false
				c.Observability.Metrics.Port = 0
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := NewLoader().Validate(config)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_setDefaults(t *testing.T) {
	loader := NewLoader()
	loader.setDefaults()

	if loader.v.GetString("application.name") != "tiwriter" {
		t.Error("default application.name not set correctly")
	}
	if loader.v.GetString("storage.backend") != "file" {
		t.Error("default storage.backend not set correctly")
	}
	if loader.v.GetInt("writer.buffer_count") != 4 {
		t.Error("default writer.buffer_count not set correctly")
	}
	if loader.v.GetString("writer.wrap_policy") != "lossy" {
		t.Error("default writer.wrap_policy not set correctly")
	}
}

func TestShutdownTimeout(t *testing.T) {
	config := validConfig()
	if got := ShutdownTimeout(config); got != 30*time.Second {
		t.Errorf("ShutdownTimeout() = %v, want 30s default", got)
	}

	config.Shutdown.GracePeriodSeconds = 5
	if got := ShutdownTimeout(config); got != 5*time.Second {
		t.Errorf("ShutdownTimeout() = %v, want 5s", got)
	}
}
