// Package encoder implements file format encoders.
package encoder

import (
	"fmt"
	"os"
	"time"

	"github.com/jittakal/tiwriter/pkg/encoder"
	"github.com/jittakal/tiwriter/pkg/record"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// CaptureRecordParquet is the Parquet schema for exported capture records.
type CaptureRecordParquet struct {
	Sequence   int64     `parquet:"sequence"`
	Segment    int32     `parquet:"segment"`
	Slot       int32     `parquet:"slot"`
	RecordID   *int64    `parquet:"record_id,optional"`
	Payload    []byte    `parquet:"payload"`
	ExportedAt time.Time `parquet:"exported_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Supports compression codecs: SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes records to a Parquet file.
func (e *ParquetEncoder) Encode(filePath string, records []record.Entry) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	startTime := time.Now()
	rows := make([]CaptureRecordParquet, len(records))
	for i, rec := range records {
		rows[i] = convertToParquetRecord(rec, startTime)
	}

	writer := parquet.NewGenericWriter[CaptureRecordParquet](
		file,
		parquet.SchemaOf(new(CaptureRecordParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("tiwriter", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	// Close file before getting stats to ensure all data is flushed
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

func convertToParquetRecord(rec record.Entry, exportedAt time.Time) CaptureRecordParquet {
	row := CaptureRecordParquet{
		Sequence:   rec.Sequence,
		Segment:    int32(rec.Segment),
		Slot:       int32(rec.Slot),
		Payload:    rec.Payload,
		ExportedAt: exportedAt,
	}
	if id, ok := rec.ID(); ok {
		v := int64(id)
		row.RecordID = &v
	}
	return row
}

// Format returns the file format.
func (e *ParquetEncoder) Format() record.FileFormat {
	return record.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
