package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jittakal/tiwriter/internal/config/dto"
	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/internal/storage"
	"github.com/jittakal/tiwriter/internal/validator"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only expand values that contain a ${...} reference
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "tiwriter")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Writer defaults
	l.v.SetDefault("writer.buffer_count", 4)
	l.v.SetDefault("writer.records_per_buffer", 4096)
	l.v.SetDefault("writer.record_size", 64)
	l.v.SetDefault("writer.wrap_policy", "lossy")
	l.v.SetDefault("writer.wrap_timeout_ms", 0)
	l.v.SetDefault("writer.flush_timeout_ms", 1000)
	l.v.SetDefault("writer.drain_timeout_ms", 5000)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.compression", "none")
	l.v.SetDefault("storage.path", "capture.ti")
	l.v.SetDefault("storage.file.base_path", "./captures")
	l.v.SetDefault("storage.file.sync", false)
	l.v.SetDefault("storage.file.buffer_size", 0)
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)
	l.v.SetDefault("storage.s3.part_size_mb", 8)
	l.v.SetDefault("storage.gcs.use_default_credential", true)
	l.v.SetDefault("storage.minio.use_ssl", true)
	l.v.SetDefault("storage.kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("storage.kafka.max_message_bytes", 1048576)
	l.v.SetDefault("storage.kafka.retry_max", 5)

	// Load generator defaults
	l.v.SetDefault("load.producers", 4)
	l.v.SetDefault("load.records_per_producer", 100000)
	l.v.SetDefault("load.rate_per_second", 0)
	l.v.SetDefault("load.verify", false)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.enabled", true)
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	// Writer validation
	geometry := validator.NewGeometryValidator()
	if err := geometry.Validate(validator.Geometry{
		BufferCount:      config.Writer.BufferCount,
		RecordsPerBuffer: config.Writer.RecordsPerBuffer,
		RecordSize:       config.Writer.RecordSize,
	}); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	if err := geometry.ValidateWrapPolicy(config.Writer.WrapPolicy, config.Writer.WrapTimeout()); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	if config.Writer.FlushTimeoutMS < 0 || config.Writer.DrainTimeoutMS < 0 {
		return errors.New("writer timeouts must not be negative")
	}

	// Storage validation
	switch config.Storage.Backend {
	case "file", "memory":
	case "s3":
		if config.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for S3 backend")
		}
		if config.Storage.S3.Region == "" {
			return errors.New("storage.s3.region is required for S3 backend")
		}
	case "gcs":
		if config.Storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required for GCS backend")
		}
	case "azure":
		if config.Storage.Azure.AccountName == "" {
			return errors.New("storage.azure.account_name is required for Azure backend")
		}
		if config.Storage.Azure.ContainerName == "" {
			return errors.New("storage.azure.container_name is required for Azure backend")
		}
	case "minio":
		if config.Storage.MinIO.Endpoint == "" {
			return errors.New("storage.minio.endpoint is required for MinIO backend")
		}
		if config.Storage.MinIO.Bucket == "" {
			return errors.New("storage.minio.bucket is required for MinIO backend")
		}
	case "kafka":
		if len(config.Storage.Kafka.BootstrapServers) == 0 {
			return errors.New("storage.kafka.bootstrap_servers is required for Kafka backend")
		}
		compression, err := encoder.ParseCompression(config.Storage.Compression)
		if err != nil {
			return err
		}
		bufferBytes := config.Writer.RecordsPerBuffer * config.Writer.RecordSize
		required := storage.RequiredMessageBytes(bufferBytes, compression)
		if config.Storage.Kafka.MaxMessageBytes > 0 && config.Storage.Kafka.MaxMessageBytes < required {
			return fmt.Errorf("storage.kafka.max_message_bytes %d cannot hold one %d byte buffer (need %d)",
				config.Storage.Kafka.MaxMessageBytes, bufferBytes, required)
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", config.Storage.Backend)
	}

	if _, err := encoder.ParseCompression(config.Storage.Compression); err != nil {
		return err
	}

	if err := config.Load.Validate(); err != nil {
		return err
	}

	// Port validation
	if config.Observability.Metrics.Enabled {
		if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
		}
	}
	if config.Observability.Health.Enabled {
		if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
			return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
		}
	}

	return nil
}

// ShutdownTimeout returns the grace period, defaulting to 30 seconds.
func ShutdownTimeout(config *dto.ApplicationConfig) time.Duration {
	if d := config.Shutdown.GracePeriod(); d > 0 {
		return d
	}
	return 30 * time.Second
}
