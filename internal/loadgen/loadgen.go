// Package loadgen drives a capture writer with synthetic producers.
//
// Every producer writes records carrying a globally unique ID, so a finished
// capture can be checked for lost or duplicated records. IDs are dense:
// producer p writes IDs p*V .. p*V+V-1 for V records per producer.
package loadgen

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/valyala/fastrand"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	apperrors "github.com/jittakal/tiwriter/internal/errors"
)

// HeaderSize is the size of the synthetic record header. Records are
// padded to the writer's record size after it.
const HeaderSize = 24

// Sink accepts records. A capture writer satisfies it.
type Sink interface {
	WriteRecord(record []byte) bool
}

// MetricsCollector receives per-record outcomes.
type MetricsCollector interface {
	IncLoadRecords(result string)
}

// Config controls the shape of the generated load.
type Config struct {
	Producers          int
	RecordsPerProducer int
	// RatePerSecond caps the combined rate of all producers. Zero is unlimited.
	RatePerSecond int
	RecordSize    int
}

// Validate checks the load configuration.
func (c Config) Validate() error {
	if c.Producers < 1 {
		return fmt.Errorf("producers must be positive, got %d", c.Producers)
	}
	if c.RecordsPerProducer < 0 {
		return fmt.Errorf("records per producer must not be negative, got %d", c.RecordsPerProducer)
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("rate must not be negative, got %d", c.RatePerSecond)
	}
	if c.RecordSize < HeaderSize {
		return fmt.Errorf("%w: %d bytes cannot hold the %d byte synthetic header", apperrors.ErrRecordSize, c.RecordSize, HeaderSize)
	}
	return nil
}

// Expected returns the number of records a complete run writes.
func (c Config) Expected() uint64 {
	return uint64(c.Producers) * uint64(c.RecordsPerProducer)
}

// Record is the decoded synthetic header.
type Record struct {
	ID       uint64
	Producer uint32
	CPU      uint32
	Tick     uint64
}

// Encode writes the header into buf, which must hold at least HeaderSize bytes.
func (r Record) Encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:], r.ID)
	binary.LittleEndian.PutUint32(buf[8:], r.Producer)
	binary.LittleEndian.PutUint32(buf[12:], r.CPU)
	binary.LittleEndian.PutUint64(buf[16:], r.Tick)
}

// Decode reads a synthetic header from buf.
func Decode(buf []byte) (Record, bool) {
	if len(buf) < HeaderSize {
		return Record{}, false
	}
	return Record{
		ID:       binary.LittleEndian.Uint64(buf[0:]),
		Producer: binary.LittleEndian.Uint32(buf[8:]),
		CPU:      binary.LittleEndian.Uint32(buf[12:]),
		Tick:     binary.LittleEndian.Uint64(buf[16:]),
	}, true
}

// Result summarises a run.
type Result struct {
	Written  int64
	Dropped  int64
	Duration time.Duration
}

// Rate returns records offered per second.
func (r Result) Rate() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Written+r.Dropped) / r.Duration.Seconds()
}

// Generator runs synthetic producers against a sink.
type Generator struct {
	cfg     Config
	sink    Sink
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics MetricsCollector

	written atomic.Int64
	dropped atomic.Int64
}

// New creates a load generator.
func New(cfg Config, sink Sink, logger *slog.Logger, metrics MetricsCollector) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{cfg: cfg, sink: sink, logger: logger, metrics: metrics}
	if cfg.RatePerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(1, cfg.Producers))
	}
	return g, nil
}

// Run starts all producers and waits for them. Cancelling ctx stops the
// producers early; that is not reported as an error.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	g.logger.Info("Starting load generator",
		"producers", g.cfg.Producers,
		"records_per_producer", g.cfg.RecordsPerProducer,
		"rate_per_second", g.cfg.RatePerSecond,
		"record_size", g.cfg.RecordSize,
	)

	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	for p := 0; p < g.cfg.Producers; p++ {
		producer := uint32(p)
		eg.Go(func() error {
			return g.produce(egCtx, producer)
		})
	}

	err := eg.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}

	result := Result{
		Written:  g.written.Load(),
		Dropped:  g.dropped.Load(),
		Duration: time.Since(start),
	}
	g.logger.Info("Load generator finished",
		"written", result.Written,
		"dropped", result.Dropped,
		"duration", result.Duration,
		"records_per_second", result.Rate(),
	)
	return result, err
}

func (g *Generator) produce(ctx context.Context, producer uint32) error {
	buf := make([]byte, g.cfg.RecordSize)
	// Random padding keeps compressed captures from looking unrealistically small.
	for i := HeaderSize; i < len(buf); i++ {
		buf[i] = byte(fastrand.Uint32())
	}

	cpus := uint32(runtime.NumCPU())
	base := uint64(producer) * uint64(g.cfg.RecordsPerProducer)

	for i := 0; i < g.cfg.RecordsPerProducer; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if g.limiter != nil {
			// Wait only fails when ctx ends, or would end, before the next token.
			if err := g.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		Record{
			ID:       base + uint64(i),
			Producer: producer,
			CPU:      fastrand.Uint32n(cpus),
			Tick:     uint64(time.Now().UnixNano()),
		}.Encode(buf)

		if g.sink.WriteRecord(buf) {
			g.written.Add(1)
			g.observe("written")
		} else {
			g.dropped.Add(1)
			g.observe("dropped")
		}
	}
	return nil
}

func (g *Generator) observe(result string) {
	if g.metrics != nil {
		g.metrics.IncLoadRecords(result)
	}
}
