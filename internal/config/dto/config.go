package dto

import (
	"fmt"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Writer        WriterConfig        `mapstructure:"writer"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Load          LoadConfig          `mapstructure:"load"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// WriterConfig contains the buffer pool geometry and timeouts
type WriterConfig struct {
	BufferCount      int    `mapstructure:"buffer_count"`
	RecordsPerBuffer int    `mapstructure:"records_per_buffer"`
	RecordSize       int    `mapstructure:"record_size"`
	WrapPolicy       string `mapstructure:"wrap_policy"`
	WrapTimeoutMS    int    `mapstructure:"wrap_timeout_ms"`
	FlushTimeoutMS   int    `mapstructure:"flush_timeout_ms"`
	DrainTimeoutMS   int    `mapstructure:"drain_timeout_ms"`
}

// WrapTimeout returns the wrap timeout as a duration.
func (c WriterConfig) WrapTimeout() time.Duration {
	return time.Duration(c.WrapTimeoutMS) * time.Millisecond
}

// FlushTimeout returns the flush timeout as a duration.
func (c WriterConfig) FlushTimeout() time.Duration {
	return time.Duration(c.FlushTimeoutMS) * time.Millisecond
}

// DrainTimeout returns the drain timeout as a duration.
func (c WriterConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMS) * time.Millisecond
}

// StorageConfig contains storage channel configuration
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Compression string      `mapstructure:"compression"`
	Path        string      `mapstructure:"path"`
	File        FileConfig  `mapstructure:"file"`
	S3          S3Config    `mapstructure:"s3"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	Azure       AzureConfig `mapstructure:"azure"`
	MinIO       MinIOConfig `mapstructure:"minio"`
	Kafka       KafkaConfig `mapstructure:"kafka"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath   string `mapstructure:"base_path"`
	Sync       bool   `mapstructure:"sync"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
	PartSizeMB   int64  `mapstructure:"part_size_mb"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container_name"`
	Endpoint      string `mapstructure:"endpoint"`
}

// MinIOConfig contains MinIO configuration
type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// KafkaConfig contains Kafka channel configuration
type KafkaConfig struct {
	BootstrapServers   []string `mapstructure:"bootstrap_servers"`
	SecurityProtocol   string   `mapstructure:"security_protocol"`
	SASLMechanism      string   `mapstructure:"sasl_mechanism"`
	SASLUsername       string   `mapstructure:"sasl_username"`
	SASLPassword       string   `mapstructure:"sasl_password"`
	Region             string   `mapstructure:"region"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
	MaxMessageBytes    int      `mapstructure:"max_message_bytes"`
	RetryMax           int      `mapstructure:"retry_max"`
}

// LoadConfig contains synthetic load generator settings
type LoadConfig struct {
	Producers          int  `mapstructure:"producers"`
	RecordsPerProducer int  `mapstructure:"records_per_producer"`
	RatePerSecond      int  `mapstructure:"rate_per_second"`
	Verify             bool `mapstructure:"verify"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	Output    string `mapstructure:"output"`
	AddSource bool   `mapstructure:"add_source"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds int `mapstructure:"grace_period_seconds"`
}

// GracePeriod returns the shutdown grace period as a duration.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.Storage.Backend == "" {
		return fmt.Errorf("storage backend is required")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

// Validate validates the load generator settings.
func (c *LoadConfig) Validate() error {
	if c.Producers < 1 {
		return fmt.Errorf("load producers must be positive, got %d", c.Producers)
	}
	if c.RecordsPerProducer < 0 {
		return fmt.Errorf("load records per producer must not be negative, got %d", c.RecordsPerProducer)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("load rate must not be negative, got %d", c.RatePerSecond)
	}
	return nil
}
