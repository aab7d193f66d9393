// Package encoder provides encoding of captured records and flushed segments.
//
// Two concerns live here:
//
//   - Segment framing and compression, used by storage channels to compress
//     each flushed buffer before it leaves the process.
//   - Export encoders, used by the export command to turn a raw capture into
//     columnar or row-based files for offline analysis.
//
// # Segment Frames
//
// When a channel is configured with compression, every Write becomes a frame:
//
//	[RawSize uint32][StoredSize uint32][Data...]
//
// StoredSize is 0 when the codec did not shrink the data; the frame then
// carries the raw bytes. Supported codecs are zstd, lz4 and gzip:
//
//	frame, err := encoder.EncodeFrame(encoder.CompressionZstd, segment)
//	data, err := encoder.ReadFrame(r, encoder.CompressionZstd)
//
// # Export Encoders
//
// Use Factory to create export encoders. It rejects formats and codecs the
// encoders do not support, and by default keeps the capture's segment codec:
//
//	factory, err := encoder.NewFactory("parquet", "", encoder.CompressionZstd)
//	enc, err := factory.CreateEncoder()
//	stats, err := enc.Encode(factory.OutputPath(capturePath), entries)
//
// Parquet rows use CaptureRecordParquet; Avro files use an embedded schema
// with the same columns. The record_id column holds the first 8 bytes of the
// payload when present.
package encoder
