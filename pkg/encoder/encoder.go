// Package encoder defines interfaces for encoding captured records to file formats.
package encoder

import "github.com/jittakal/tiwriter/pkg/record"

// Encoder encodes records to a specific file format.
type Encoder interface {
	// Encode writes records to a file and returns file statistics.
	Encode(filePath string, records []record.Entry) (*record.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() record.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
