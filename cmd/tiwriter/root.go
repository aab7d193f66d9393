package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tiwriter",
		Short: "Lock-free capture writer for fixed-size trace records",
		Long: `tiwriter captures fixed-size records from many concurrent producers
into a ring of pre-allocated buffers and persists every completed buffer
through a storage channel (file, S3, GCS, Azure Blob, MinIO or Kafka).

Use "run" to drive a capture session with synthetic producers and
"export" to convert a file capture to Parquet or Avro.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newExportCmd())
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("tiwriter version %s\n", version))
	return root
}
