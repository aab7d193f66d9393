package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tiwriter"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Writer metrics
	RecordsWritten prometheus.Counter
	RecordsDropped *prometheus.CounterVec
	BufferFlushes  *prometheus.CounterVec
	FlushBytes     prometheus.Histogram
	FlushDuration  prometheus.Histogram
	FlushWait      prometheus.Histogram
	WrapOverruns   prometheus.Counter
	FlushTimeouts  prometheus.Counter
	WriterOpen     prometheus.Gauge

	// Storage metrics
	SegmentsWritten      *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec

	// Load generator metrics
	LoadRecords *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Writer metrics
		RecordsWritten: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_written_total",
				Help:      "Total number of records copied into a buffer slot",
			},
		),
		RecordsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_dropped_total",
				Help:      "Total number of records dropped by the writer",
			},
			[]string{"reason"},
		),
		BufferFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "buffer_flushes_total",
				Help:      "Total number of buffer flushes to the storage channel",
			},
			[]string{"status"},
		),
		FlushBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_bytes",
				Help:      "Size of flushed buffers",
				Buckets:   prometheus.ExponentialBuckets(4096, 4, 10), // 4KB to 1GB
			},
		),
		FlushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_duration_seconds",
				Help:      "Duration of storage channel writes issued by flushes",
				Buckets:   prometheus.DefBuckets,
			},
		),
		FlushWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_wait_seconds",
				Help:      "Time a flush waited for in-flight writers to drain",
				Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
			},
		),
		WrapOverruns: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wrap_overruns_total",
				Help:      "Total number of wraps onto a buffer whose flush had not completed",
			},
		),
		FlushTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flush_timeouts_total",
				Help:      "Total number of flushes issued with writers still in flight",
			},
		),
		WriterOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "writer_open",
				Help:      "Whether the capture session is open (1) or closed (0)",
			},
		),

		// Storage metrics
		SegmentsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segments_written_total",
				Help:      "Total number of segments persisted by storage channels",
			},
			[]string{"backend", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_write_duration_seconds",
				Help:      "Duration of storage channel writes including compression",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage errors",
			},
			[]string{"backend", "operation"},
		),

		// Load generator metrics
		LoadRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_records_total",
				Help:      "Total number of synthetic records submitted by the load generator",
			},
			[]string{"result"},
		),
	}
}

// IncRecordsWritten increments records written counter.
func (m *Metrics) IncRecordsWritten() {
	m.RecordsWritten.Inc()
}

// IncRecordsDropped increments records dropped counter.
func (m *Metrics) IncRecordsDropped(reason string) {
	m.RecordsDropped.WithLabelValues(reason).Inc()
}

// IncBufferFlushes increments buffer flushes counter.
func (m *Metrics) IncBufferFlushes(status string) {
	m.BufferFlushes.WithLabelValues(status).Inc()
}

// ObserveFlushBytes observes flushed buffer size.
func (m *Metrics) ObserveFlushBytes(size float64) {
	m.FlushBytes.Observe(size)
}

// ObserveFlushDuration observes flush write duration.
func (m *Metrics) ObserveFlushDuration(duration float64) {
	m.FlushDuration.Observe(duration)
}

// ObserveFlushWait observes time spent draining in-flight writers.
func (m *Metrics) ObserveFlushWait(duration float64) {
	m.FlushWait.Observe(duration)
}

// IncWrapOverruns increments wrap overruns counter.
func (m *Metrics) IncWrapOverruns() {
	m.WrapOverruns.Inc()
}

// IncFlushTimeouts increments flush timeouts counter.
func (m *Metrics) IncFlushTimeouts() {
	m.FlushTimeouts.Inc()
}

// SetWriterOpen sets the writer open gauge.
func (m *Metrics) SetWriterOpen(open bool) {
	if open {
		m.WriterOpen.Set(1)
		return
	}
	m.WriterOpen.Set(0)
}

// IncSegmentsWritten increments segments written counter.
func (m *Metrics) IncSegmentsWritten(backend string, status string) {
	m.SegmentsWritten.WithLabelValues(backend, status).Inc()
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(backend string, duration float64) {
	m.StorageWriteDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncLoadRecords increments load generator records counter.
func (m *Metrics) IncLoadRecords(result string) {
	m.LoadRecords.WithLabelValues(result).Inc()
}
