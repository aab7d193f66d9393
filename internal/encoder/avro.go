// Package encoder implements file format encoders.
package encoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jittakal/tiwriter/pkg/encoder"
	"github.com/jittakal/tiwriter/pkg/record"
	"github.com/linkedin/goavro/v2"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It supports optional gzip compression and produces OCF (Object Container File)
// output readable by Spark and other Avro tooling.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for exported capture records.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "CaptureRecord",
		"namespace": "com.tiwriter.capture",
		"fields": [
			{"name": "sequence", "type": "long"},
			{"name": "segment", "type": "int"},
			{"name": "slot", "type": "int"},
			{"name": "record_id", "type": ["null", "long"], "default": null},
			{"name": "payload", "type": "bytes"},
			{"name": "exported_at", "type": "string"}
		]
	}`
}

// Encode writes records to an Avro file.
func (e *AvroEncoder) Encode(filePath string, records []record.Entry) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	startTime := time.Now()
	if err := e.encodeTo(file, records, startTime); err != nil {
		return nil, err
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &record.FileStats{
		RecordCount:    len(records),
		SizeBytes:      fileInfo.Size(),
		FirstWriteTime: startTime,
		LastWriteTime:  time.Now(),
	}, nil
}

// EncodeToBytes encodes records to bytes (useful for testing).
func (e *AvroEncoder) EncodeToBytes(records []record.Entry) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	if err := e.encodeTo(&buf, records, time.Now()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) encodeTo(w io.Writer, records []record.Entry, exportedAt time.Time) error {
	writer := w
	var gzipWriter *gzip.Writer

	if e.gzipped() {
		gzipWriter = gzip.NewWriter(w)
		writer = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     writer,
		Codec: e.codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	stamp := exportedAt.UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		if err := ocfWriter.Append([]interface{}{convertToAvroMap(rec, stamp)}); err != nil {
			return fmt.Errorf("failed to write record %s: %w", rec, err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

// convertToAvroMap converts an Entry to its Avro map representation.
func convertToAvroMap(rec record.Entry, exportedAt string) map[string]interface{} {
	avroMap := map[string]interface{}{
		"sequence":    rec.Sequence,
		"segment":     int32(rec.Segment),
		"slot":        int32(rec.Slot),
		"payload":     rec.Payload,
		"exported_at": exportedAt,
	}

	if id, ok := rec.ID(); ok {
		avroMap["record_id"] = goavro.Union("long", int64(id))
	} else {
		avroMap["record_id"] = nil
	}

	return avroMap
}

func (e *AvroEncoder) gzipped() bool {
	return e.compression == "gzip" || e.compression == "GZIP"
}

// Format returns the file format.
func (e *AvroEncoder) Format() record.FileFormat {
	return record.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipped() {
		return ".avro.gz"
	}
	return ".avro"
}
