package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Channel = (*AzureChannel)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// Validate checks required Azure settings.
func (c AzureConfig) Validate() error {
	if err := requireField("azure", "account_name", c.AccountName); err != nil {
		return err
	}
	if err := requireField("azure", "account_key", c.AccountKey); err != nil {
		return err
	}
	return requireField("azure", "container", c.ContainerName)
}

// ConnectionString builds the storage account connection string.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureChannel uploads every flushed buffer as one block blob.
type AzureChannel struct {
	*objectChannel
	client        *azblob.Client
	containerName string
}

// NewAzureChannel creates a new Azure Blob storage channel.
func NewAzureChannel(
	cfg AzureConfig,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	c := &AzureChannel{
		client:        client,
		containerName: cfg.ContainerName,
	}
	c.objectChannel, err = newObjectChannel("azure", "wasbs", compression, c.put, logger, metrics)
	if err != nil {
		return nil, err
	}

	logger.Info("Azure channel created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
		"compression", compression,
	)

	return c, nil
}

func (c *AzureChannel) put(ctx context.Context, key string, body []byte) error {
	ct := contentType(c.compression)
	_, err := c.client.UploadBuffer(ctx, c.containerName, key, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}
	return nil
}
