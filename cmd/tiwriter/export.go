package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jittakal/tiwriter/internal/capture"
	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/pkg/record"
)

type exportOptions struct {
	in                 string
	out                string
	recordSize         int
	recordsPerBuffer   int
	segmentCompression string
	format             string
	compression        string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Convert a file capture to Parquet or Avro",
		Example: `  tiwriter export --in captures/capture.ti --record-size 64 --format parquet
  tiwriter export --in capture.ti --segment-compression zstd --record-size 64 --format avro --out capture.avro`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, stats, err := runExport(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d records to %s (%d bytes)\n", stats.RecordCount, out, stats.SizeBytes)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", "", "capture file written by the file channel")
	cmd.Flags().StringVar(&opts.out, "out", "", "output file (default: input name with the format extension)")
	cmd.Flags().IntVar(&opts.recordSize, "record-size", 0, "record size in bytes")
	cmd.Flags().IntVar(&opts.recordsPerBuffer, "records-per-buffer", 0, "records per buffer, used to number segments of raw captures")
	cmd.Flags().StringVar(&opts.segmentCompression, "segment-compression", "none", "compression the capture was written with (none, zstd, lz4, gzip)")
	cmd.Flags().StringVar(&opts.format, "format", string(record.FormatParquet),
		fmt.Sprintf("output format (%s)", formatList()))
	cmd.Flags().StringVar(&opts.compression, "compression", "",
		fmt.Sprintf("output compression; parquet: %s; avro: %s (default follows --segment-compression when supported)",
			strings.Join(encoder.SupportedCompressions(record.FormatParquet), ", "),
			strings.Join(encoder.SupportedCompressions(record.FormatAvro), ", ")))
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("record-size")
	return cmd
}

// runExport converts a capture and returns the output path.
func runExport(opts exportOptions) (string, *record.FileStats, error) {
	segmentCompression, err := encoder.ParseCompression(opts.segmentCompression)
	if err != nil {
		return "", nil, err
	}

	factory, err := encoder.NewFactory(opts.format, opts.compression, segmentCompression)
	if err != nil {
		return "", nil, err
	}
	enc, err := factory.CreateEncoder()
	if err != nil {
		return "", nil, err
	}

	entries, err := readCaptureFile(opts.in, capture.Options{
		RecordSize:       opts.recordSize,
		RecordsPerBuffer: opts.recordsPerBuffer,
		Compression:      segmentCompression,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to read capture: %w", err)
	}

	if opts.out == "" {
		opts.out = factory.OutputPath(opts.in)
	}

	stats, err := enc.Encode(opts.out, entries)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s: %w", factory.Format(), err)
	}
	return opts.out, stats, nil
}

func formatList() string {
	formats := encoder.SupportedFormats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
