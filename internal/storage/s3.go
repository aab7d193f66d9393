package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Channel = (*S3Channel)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
	// PartSizeMB sizes multipart upload parts. Segments smaller than one
	// part are uploaded with a single PUT.
	PartSizeMB int64
}

// Validate checks required S3 settings.
func (c S3Config) Validate() error {
	if err := requireField("s3", "bucket", c.Bucket); err != nil {
		return err
	}
	return requireField("s3", "region", c.Region)
}

// S3Channel uploads every flushed buffer as one S3 object.
// It provides multipart upload support and server-side encryption (SSE).
type S3Channel struct {
	*objectChannel
	client      *s3.Client
	uploader    *manager.Uploader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
}

// NewS3Channel creates a new S3 storage channel.
func NewS3Channel(
	cfg S3Config,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Channel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Load AWS config
	ctx := context.Background()
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client
	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	partSize := cfg.PartSizeMB * 1024 * 1024
	if partSize < manager.MinUploadPartSize {
		partSize = manager.DefaultUploadPartSize
	}
	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = 5
	})

	c := &S3Channel{
		client:      s3Client,
		uploader:    uploader,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
	}
	c.objectChannel, err = newObjectChannel("s3", "s3", compression, c.put, logger, metrics)
	if err != nil {
		return nil, err
	}

	logger.Info("S3 channel created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"compression", compression,
		"sse_enabled", cfg.SSEEnabled,
	)

	return c, nil
}

func (c *S3Channel) put(ctx context.Context, key string, body []byte) error {
	uploadInput := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType(c.compression)),
	}

	// Add SSE if enabled
	if c.sseEnabled {
		if c.sseKMSKeyID != "" {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			uploadInput.SSEKMSKeyId = aws.String(c.sseKMSKeyID)
		} else {
			uploadInput.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	if _, err := c.uploader.Upload(ctx, uploadInput); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}
