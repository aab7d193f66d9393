package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jittakal/tiwriter/internal/capture"
	"github.com/jittakal/tiwriter/internal/config"
	"github.com/jittakal/tiwriter/internal/config/dto"
	"github.com/jittakal/tiwriter/internal/encoder"
	"github.com/jittakal/tiwriter/internal/loadgen"
	"github.com/jittakal/tiwriter/internal/observability"
	"github.com/jittakal/tiwriter/internal/server"
	"github.com/jittakal/tiwriter/internal/storage"
	"github.com/jittakal/tiwriter/internal/writer"
	"github.com/jittakal/tiwriter/pkg/record"
	pkgstorage "github.com/jittakal/tiwriter/pkg/storage"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		verify     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a capture session driven by synthetic producers",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Priority: flag > CONFIG_PATH env var > default path
			path := configPath
			if path == "" {
				path = os.Getenv("CONFIG_PATH")
			}
			if path == "" {
				path = "config/application.yaml"
			}

			cfg, err := config.NewLoader().Load(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cmd.Flags().Changed("verify") {
				cfg.Load.Verify = verify
			}

			logger := observability.NewLogger(observability.LoggingConfig{
				Level:     cfg.Observability.Logging.Level,
				Format:    cfg.Observability.Logging.Format,
				Output:    cfg.Observability.Logging.Output,
				AddSource: cfg.Observability.Logging.AddSource,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, err = runCapture(ctx, cfg, logger, prometheus.NewRegistry())
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the capture for lost or duplicated records")
	return cmd
}

// runSummary is the outcome of one capture session.
type runSummary struct {
	// SessionID names the storage session of object and Kafka channels.
	SessionID string
	Load      loadgen.Result
	Stats     record.Stats
	Report    *capture.Report
}

// sessioned is implemented by channels that key each Open with a session id.
type sessioned interface {
	SessionID() string
}

func runCapture(ctx context.Context, cfg *dto.ApplicationConfig, logger *slog.Logger, registry *prometheus.Registry) (*runSummary, error) {
	logger.Info("Starting tiwriter capture",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"backend", cfg.Storage.Backend,
	)

	metrics := observability.NewMetrics(registry)

	// Track cleanup functions, run in reverse order
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			if err := fn(); err != nil {
				logger.Error("cleanup failed", "component", name, "error", err)
				return err
			}
			return nil
		})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			_ = cleanupFuncs[i]()
		}
	}()

	channel, err := newChannel(cfg.Storage, logger, metrics)
	if err != nil {
		return nil, err
	}
	addCleanup("storage-channel", func() error { return shutdownChannel(channel) })

	w, err := writer.New(writer.Config{
		BufferCount:      cfg.Writer.BufferCount,
		RecordsPerBuffer: cfg.Writer.RecordsPerBuffer,
		RecordSize:       cfg.Writer.RecordSize,
		WrapPolicy:       writer.WrapPolicy(strings.ToLower(cfg.Writer.WrapPolicy)),
		WrapTimeout:      cfg.Writer.WrapTimeout(),
		FlushTimeout:     cfg.Writer.FlushTimeout(),
		DrainTimeout:     cfg.Writer.DrainTimeout(),
	}, channel, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create writer: %w", err)
	}

	health := server.NewCaptureHealth(w)
	opts := server.Options{
		LivenessPath:  cfg.Observability.Health.LivenessPath,
		ReadinessPath: cfg.Observability.Health.ReadinessPath,
		MetricsPath:   cfg.Observability.Metrics.Path,
	}
	if cfg.Observability.Health.Enabled {
		opts.HealthPort = cfg.Observability.Health.Port
	}
	if cfg.Observability.Metrics.Enabled {
		opts.MetricsPort = cfg.Observability.Metrics.Port
	}
	httpServer := server.NewServer(opts, health, registry, logger)
	if err := httpServer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	if err := w.Open(ctx, cfg.Storage.Path); err != nil {
		health.MarkFailed()
		return nil, fmt.Errorf("failed to open writer: %w", err)
	}

	var sessionID string
	if s, ok := channel.(sessioned); ok {
		sessionID = s.SessionID()
		logger.Info("Capture session started", "session_id", sessionID, "path", cfg.Storage.Path)
	}

	loadCfg := loadgen.Config{
		Producers:          cfg.Load.Producers,
		RecordsPerProducer: cfg.Load.RecordsPerProducer,
		RatePerSecond:      cfg.Load.RatePerSecond,
		RecordSize:         cfg.Writer.RecordSize,
	}
	gen, err := loadgen.New(loadCfg, w, logger, metrics)
	if err != nil {
		closeErr := w.Close(context.Background())
		return nil, errors.Join(fmt.Errorf("failed to create load generator: %w", err), closeErr)
	}

	result, runErr := gen.Run(ctx)

	// The signal context may already be done; close on a fresh one.
	closeCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout(cfg))
	defer cancel()
	closeErr := w.Close(closeCtx)
	if err := errors.Join(runErr, closeErr); err != nil {
		health.MarkFailed()
		return nil, err
	}

	summary := &runSummary{SessionID: sessionID, Load: result, Stats: w.Stats()}

	if cfg.Load.Verify {
		report, err := verifyCapture(cfg, loadCfg, channel, result, logger)
		if err != nil {
			return summary, err
		}
		summary.Report = report
		if report != nil && !report.OK() {
			return summary, fmt.Errorf("capture verification failed: %s", report)
		}
	}

	logger.Info("Capture finished",
		"written", summary.Stats.RecordsWritten,
		"dropped", summary.Stats.Dropped(),
		"flushes", summary.Stats.Flushes,
		"flush_failures", summary.Stats.FlushFailures,
		"wrap_overruns", summary.Stats.WrapOverruns,
	)
	return summary, nil
}

// verifyCapture reads the capture back and checks record IDs. Only captures
// that can be read locally are verified.
func verifyCapture(cfg *dto.ApplicationConfig, loadCfg loadgen.Config, channel pkgstorage.Channel, result loadgen.Result, logger *slog.Logger) (*capture.Report, error) {
	var (
		entries []record.Entry
		err     error
	)

	switch ch := channel.(type) {
	case *storage.MemoryChannel:
		entries, err = capture.FromSegments(ch.Segments(), cfg.Writer.RecordSize)
	case *storage.FileChannel:
		entries, err = readCaptureFile(ch.Path(), capture.Options{
			RecordSize:       cfg.Writer.RecordSize,
			RecordsPerBuffer: cfg.Writer.RecordsPerBuffer,
			Compression:      ch.Compression(),
		})
	default:
		logger.Warn("Skipping verification, capture is not readable locally", "backend", cfg.Storage.Backend)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}

	// Drops and early cancellation leave gaps, so only a complete run can
	// expect every ID.
	var expected uint64
	if total := loadCfg.Expected(); result.Dropped == 0 && uint64(result.Written) == total {
		expected = total
	}

	report := capture.VerifyUnique(entries, func(e record.Entry) (uint64, bool) {
		rec, ok := loadgen.Decode(e.Payload)
		return rec.ID, ok
	}, expected)

	logger.Info("Capture verified",
		"records", report.Records,
		"unique", report.Unique,
		"duplicates", report.Duplicates,
		"missing", report.Missing,
		"ok", report.OK(),
	)
	return &report, nil
}

func readCaptureFile(path string, opts capture.Options) ([]record.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if opts.Compression == "" {
		opts.Compression = encoder.CompressionNone
	}
	return capture.ReadAll(f, opts)
}
