package storage

import (
	"context"
	"fmt"
	"log/slog"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Channel = (*GCSChannel)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// Validate checks required GCS settings.
func (c GCSConfig) Validate() error {
	return requireField("gcs", "bucket", c.Bucket)
}

// GCSChannel uploads every flushed buffer as one GCS object.
// It supports multiple authentication methods (service account file, JSON, default credentials).
type GCSChannel struct {
	*objectChannel
	client *gcs.Client
	bucket string
}

// NewGCSChannel creates a new Google Cloud Storage channel.
func NewGCSChannel(
	cfg GCSConfig,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx := context.Background()

	// Determine authentication method
	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	c := &GCSChannel{
		client: client,
		bucket: cfg.Bucket,
	}
	c.objectChannel, err = newObjectChannel("gcs", "gs", compression, c.put, logger, metrics)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("GCS channel created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"compression", compression,
	)

	return c, nil
}

func (c *GCSChannel) put(ctx context.Context, key string, body []byte) error {
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(c.compression)

	if _, err := w.Write(body); err != nil {
		w.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

// Shutdown releases the GCS client. The channel cannot be reopened afterwards.
func (c *GCSChannel) Shutdown() error {
	return c.client.Close()
}
