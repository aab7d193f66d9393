package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Channel = (*KafkaChannel)(nil)

// KafkaConfig contains Kafka producer configuration.
type KafkaConfig struct {
	BootstrapServers []string
	Security         KafkaSecurity
	// MaxMessageBytes caps one message. It must cover a full buffer.
	MaxMessageBytes int
	RetryMax        int
}

// KafkaMessageOverhead bounds what a segment message adds to its value: the
// record batch header, the session key and the segment headers.
const KafkaMessageOverhead = 512

// RequiredMessageBytes returns the smallest producer max message size that
// fits one flushed buffer of bufferBytes. Compressed segments are framed and
// never grow beyond the raw buffer plus the frame header.
func RequiredMessageBytes(bufferBytes int, compression encoder.Compression) int {
	n := bufferBytes + KafkaMessageOverhead
	if compression != encoder.CompressionNone {
		n += encoder.FrameHeaderSize
	}
	return n
}

// Validate checks required Kafka settings.
func (c KafkaConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return &errors.ValidationError{Field: "storage.kafka.bootstrap_servers", Reason: "is required"}
	}
	return nil
}

// KafkaChannel publishes every flushed buffer as one Kafka message.
// The topic is the path given to Open; messages are keyed by session id
// and carry the segment sequence in a header.
type KafkaChannel struct {
	producer    sarama.SyncProducer
	compression encoder.Compression
	logger      *slog.Logger
	metrics     MetricsCollector

	mu        sync.Mutex
	topic     string
	sessionID string
	sequence  int64
	opened    bool
	closed    bool
}

// NewKafkaChannel creates a Kafka channel with its own sync producer.
func NewKafkaChannel(
	cfg KafkaConfig,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*KafkaChannel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	saramaConfig, err := newProducerConfig(cfg)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	c, err := newKafkaChannel(producer, compression, logger, metrics)
	if err != nil {
		producer.Close()
		return nil, err
	}

	logger.Info("Kafka channel created",
		"bootstrap_servers", cfg.BootstrapServers,
		"security_protocol", cfg.Security.Protocol,
		"compression", compression,
	)

	return c, nil
}

func newKafkaChannel(producer sarama.SyncProducer, compression string, logger *slog.Logger, metrics MetricsCollector) (*KafkaChannel, error) {
	c, err := encoder.ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return &KafkaChannel{
		producer:    producer,
		compression: c,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

func newProducerConfig(cfg KafkaConfig) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	if cfg.RetryMax > 0 {
		saramaConfig.Producer.Retry.Max = cfg.RetryMax
	}
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1
	if cfg.MaxMessageBytes > 0 {
		saramaConfig.Producer.MaxMessageBytes = cfg.MaxMessageBytes
	}

	if err := configureSecurity(saramaConfig, cfg.Security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	if err := saramaConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer config: %w", err)
	}
	return saramaConfig, nil
}

// Open binds the channel to topic and starts a new session.
func (c *KafkaChannel) Open(_ context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if topic == "" {
		return &errors.ValidationError{Field: "topic", Reason: "is required"}
	}

	c.topic = topic
	c.sessionID = uuid.NewString()
	c.sequence = 0
	c.opened = true
	c.closed = false

	c.logger.Info("storage channel opened",
		"backend", "kafka",
		"topic", topic,
		"session_id", c.sessionID,
	)
	return nil
}

// Write publishes p as one message and waits for the broker ack.
func (c *KafkaChannel) Write(_ context.Context, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return notOpenError(c.closed)
	}

	startTime := time.Now()

	body, err := encodeSegment(c.compression, p)
	if err != nil {
		c.fail("compress")
		return &errors.StorageError{Backend: "kafka", Operation: "compress", Path: c.topic, Err: err}
	}

	// The producer may retain the value until the ack; the writer reuses p.
	if c.compression == encoder.CompressionNone {
		body = bytes.Clone(body)
	}

	msg := &sarama.ProducerMessage{
		Topic: c.topic,
		Key:   sarama.StringEncoder(c.sessionID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("segment"), Value: []byte(strconv.FormatInt(c.sequence, 10))},
			{Key: []byte("compression"), Value: []byte(c.compression)},
		},
		Timestamp: startTime,
	}

	partition, offset, err := c.producer.SendMessage(msg)
	if err != nil {
		c.fail("publish")
		return &errors.StorageError{Backend: "kafka", Operation: "publish", Path: c.topic, Err: publishError(err)}
	}

	c.logger.Debug("published segment",
		"topic", c.topic,
		"segment", c.sequence,
		"partition", partition,
		"offset", offset,
		"size", len(body),
	)
	c.sequence++

	if c.metrics != nil {
		c.metrics.IncSegmentsWritten("kafka", "success")
		c.metrics.ObserveStorageWriteDuration("kafka", time.Since(startTime).Seconds())
	}
	return nil
}

// Close ends the session. The producer stays usable for the next Open.
func (c *KafkaChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}
	c.opened = false
	c.closed = true

	c.logger.Info("storage channel closed",
		"backend", "kafka",
		"topic", c.topic,
		"segments", c.sequence,
	)
	return nil
}

// Shutdown closes the underlying producer.
func (c *KafkaChannel) Shutdown() error {
	if err := c.producer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	return nil
}

// SessionID returns the key of messages in the current or last session.
func (c *KafkaChannel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// publishError marks broker connectivity failures as ErrConnectionLost.
func publishError(err error) error {
	if stderrors.Is(err, sarama.ErrOutOfBrokers) ||
		stderrors.Is(err, sarama.ErrNotConnected) ||
		stderrors.Is(err, sarama.ErrClosedClient) {
		return fmt.Errorf("%w: %w", errors.ErrConnectionLost, err)
	}
	return err
}

func (c *KafkaChannel) fail(operation string) {
	if c.metrics != nil {
		c.metrics.IncStorageErrors("kafka", operation)
		c.metrics.IncSegmentsWritten("kafka", "failure")
	}
}
