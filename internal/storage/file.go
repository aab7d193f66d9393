package storage

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/internal/errors"
	"github.com/jittakal/tiwriter/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Channel = (*FileChannel)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	// BasePath is prepended to relative capture paths.
	BasePath string
	// Sync fsyncs the file after every write.
	Sync bool
	// BufferSize sizes the write buffer in front of the file. Zero writes
	// straight to the file.
	BufferSize int
}

// FileChannel appends flushed buffers to a single local file.
// Uncompressed captures are the raw concatenation of buffers; compressed
// captures are a sequence of frames.
type FileChannel struct {
	basePath    string
	sync        bool
	bufferSize  int
	compression encoder.Compression
	logger      *slog.Logger
	metrics     MetricsCollector

	mu       sync.Mutex
	file     *os.File
	buf      *bufio.Writer
	path     string
	segments int64
	written  int64
	closed   bool
}

// NewFileChannel creates a new filesystem storage channel.
func NewFileChannel(
	config FileConfig,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileChannel, error) {
	c, err := encoder.ParseCompression(compression)
	if err != nil {
		return nil, err
	}

	if config.BasePath != "" {
		if err := os.MkdirAll(config.BasePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create base path: %w", err)
		}
	}

	logger.Info("filesystem channel created",
		"base_path", config.BasePath,
		"compression", c,
		"sync", config.Sync,
	)

	return &FileChannel{
		basePath:    config.BasePath,
		sync:        config.Sync,
		bufferSize:  config.BufferSize,
		compression: c,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Open creates or truncates the capture file.
func (c *FileChannel) Open(_ context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file != nil {
		return fmt.Errorf("file channel already open: %s", c.path)
	}

	fullPath := c.resolve(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		c.fail("mkdir")
		return &errors.StorageError{Backend: "file", Operation: "mkdir", Path: fullPath, Err: err}
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		c.fail("open")
		return &errors.StorageError{Backend: "file", Operation: "open", Path: fullPath, Err: err}
	}

	c.file = f
	if c.bufferSize > 0 {
		c.buf = bufio.NewWriterSize(f, c.bufferSize)
	}
	c.path = fullPath
	c.segments = 0
	c.written = 0
	c.closed = false

	c.logger.Info("opened capture file", "path", fullPath, "compression", c.compression)
	return nil
}

// Write appends p, framed when compression is enabled.
func (c *FileChannel) Write(_ context.Context, p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return notOpenError(c.closed)
	}

	startTime := time.Now()

	data, err := encodeSegment(c.compression, p)
	if err != nil {
		c.fail("compress")
		c.failSegment()
		return &errors.StorageError{Backend: "file", Operation: "compress", Path: c.path, Err: err}
	}

	if c.buf != nil {
		_, err = c.buf.Write(data)
	} else {
		_, err = c.file.Write(data)
	}
	if err != nil {
		c.fail("write")
		c.failSegment()
		return &errors.StorageError{Backend: "file", Operation: "write", Path: c.path, Err: err}
	}

	if c.sync {
		if err := c.flushLocked(); err != nil {
			return err
		}
	}

	c.segments++
	c.written += int64(len(data))

	if c.metrics != nil {
		c.metrics.IncSegmentsWritten("file", "success")
		c.metrics.ObserveStorageWriteDuration("file", time.Since(startTime).Seconds())
	}

	return nil
}

// Close flushes and closes the capture file.
func (c *FileChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil
	}

	flushErr := c.flushLocked()
	closeErr := c.file.Close()
	c.file = nil
	c.buf = nil
	c.closed = true

	c.logger.Info("closed capture file",
		"path", c.path,
		"segments", c.segments,
		"bytes", c.written,
	)

	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		c.fail("close")
		return &errors.StorageError{Backend: "file", Operation: "close", Path: c.path, Err: closeErr}
	}
	return nil
}

// Path returns the resolved path of the current or last capture file.
func (c *FileChannel) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Compression returns the codec used for segments.
func (c *FileChannel) Compression() encoder.Compression {
	return c.compression
}

func (c *FileChannel) flushLocked() error {
	if c.buf != nil {
		if err := c.buf.Flush(); err != nil {
			c.fail("write")
			return &errors.StorageError{Backend: "file", Operation: "write", Path: c.path, Err: err}
		}
	}
	if c.sync {
		if err := c.file.Sync(); err != nil {
			c.fail("sync")
			return &errors.StorageError{Backend: "file", Operation: "sync", Path: c.path, Err: err}
		}
	}
	return nil
}

func (c *FileChannel) resolve(path string) string {
	// Strip file:// protocol prefix if present
	cleanPath := strings.TrimPrefix(path, "file://")
	if filepath.IsAbs(cleanPath) || c.basePath == "" {
		return cleanPath
	}
	return filepath.Join(c.basePath, cleanPath)
}

func (c *FileChannel) fail(operation string) {
	if c.metrics != nil {
		c.metrics.IncStorageErrors("file", operation)
	}
}

func (c *FileChannel) failSegment() {
	if c.metrics != nil {
		c.metrics.IncSegmentsWritten("file", "failure")
	}
}
