package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Channel = (*MinIOChannel)(nil)

// MinIOConfig contains MinIO or S3-compatible storage configuration.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// Validate checks required MinIO settings.
func (c MinIOConfig) Validate() error {
	if err := requireField("minio", "endpoint", c.Endpoint); err != nil {
		return err
	}
	return requireField("minio", "bucket", c.Bucket)
}

// MinIOChannel uploads every flushed buffer as one object to a MinIO or
// other S3-compatible server.
type MinIOChannel struct {
	*objectChannel
	client *minio.Client
	bucket string
}

// NewMinIOChannel creates a new MinIO storage channel.
func NewMinIOChannel(
	cfg MinIOConfig,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*MinIOChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	c := &MinIOChannel{
		client: client,
		bucket: cfg.Bucket,
	}
	c.objectChannel, err = newObjectChannel("minio", "s3", compression, c.put, logger, metrics)
	if err != nil {
		return nil, err
	}

	logger.Info("MinIO channel created",
		"endpoint", cfg.Endpoint,
		"bucket", cfg.Bucket,
		"compression", compression,
	)

	return c, nil
}

// Open checks that the bucket exists before starting a session.
func (c *MinIOChannel) Open(ctx context.Context, path string) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check MinIO bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("MinIO bucket %q does not exist", c.bucket)
	}
	return c.objectChannel.Open(ctx, path)
}

func (c *MinIOChannel) put(ctx context.Context, key string, body []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType(c.compression),
	})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		return fmt.Errorf("failed to upload to MinIO (code=%s): %w", errResp.Code, err)
	}
	return nil
}
