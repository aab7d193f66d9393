package main

import (
	"fmt"
	"log/slog"

	"github.com/jittakal/tiwriter/internal/config/dto"
	"github.com/jittakal/tiwriter/internal/storage"
	pkgstorage "github.com/jittakal/tiwriter/pkg/storage"
)

// shutdowner is implemented by channels that own a long-lived client.
type shutdowner interface {
	Shutdown() error
}

// newChannel builds the storage channel selected by the configuration.
func newChannel(cfg dto.StorageConfig, logger *slog.Logger, metrics storage.MetricsCollector) (pkgstorage.Channel, error) {
	switch cfg.Backend {
	case "file":
		ch, err := storage.NewFileChannel(storage.FileConfig{
			BasePath:   cfg.File.BasePath,
			Sync:       cfg.File.Sync,
			BufferSize: cfg.File.BufferSize,
		}, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create file channel: %w", err)
		}
		return ch, nil
	case "memory":
		return storage.NewMemoryChannel(), nil
	case "s3":
		ch, err := storage.NewS3Channel(storage.S3Config{
			Bucket:       cfg.S3.Bucket,
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
			SSEEnabled:   cfg.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.S3.SSEKMSKeyID,
			PartSizeMB:   cfg.S3.PartSizeMB,
		}, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 channel: %w", err)
		}
		return ch, nil
	case "gcs":
		ch, err := storage.NewGCSChannel(storage.GCSConfig{
			Bucket:               cfg.GCS.Bucket,
			ProjectID:            cfg.GCS.ProjectID,
			CredentialsFile:      cfg.GCS.CredentialsFile,
			CredentialsJSON:      cfg.GCS.CredentialsJSON,
			Endpoint:             cfg.GCS.Endpoint,
			UseDefaultCredential: cfg.GCS.UseDefaultCredential,
		}, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS channel: %w", err)
		}
		return ch, nil
	case "azure":
		ch, err := storage.NewAzureChannel(storage.AzureConfig{
			AccountName:   cfg.Azure.AccountName,
			AccountKey:    cfg.Azure.AccountKey,
			ContainerName: cfg.Azure.ContainerName,
			Endpoint:      cfg.Azure.Endpoint,
		}, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob channel: %w", err)
		}
		return ch, nil
	case "minio":
		ch, err := storage.NewMinIOChannel(storage.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			Region:    cfg.MinIO.Region,
		}, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO channel: %w", err)
		}
		return ch, nil
	case "kafka":
		ch, err := storage.NewKafkaChannel(storage.KafkaConfig{
			BootstrapServers: cfg.Kafka.BootstrapServers,
			Security: storage.KafkaSecurity{
				Protocol:           cfg.Kafka.SecurityProtocol,
				SASLMechanism:      cfg.Kafka.SASLMechanism,
				SASLUsername:       cfg.Kafka.SASLUsername,
				SASLPassword:       cfg.Kafka.SASLPassword,
				Region:             cfg.Kafka.Region,
				InsecureSkipVerify: cfg.Kafka.InsecureSkipVerify,
			},
			MaxMessageBytes: cfg.Kafka.MaxMessageBytes,
			RetryMax:        cfg.Kafka.RetryMax,
		}, cfg.Compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka channel: %w", err)
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: file, memory, s3, gcs, azure, minio, kafka)", cfg.Backend)
	}
}

// shutdownChannel releases the client behind ch, if it has one.
func shutdownChannel(ch pkgstorage.Channel) error {
	if s, ok := ch.(shutdowner); ok {
		return s.Shutdown()
	}
	return nil
}
