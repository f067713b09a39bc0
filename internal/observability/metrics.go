// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "wallet_risk_lab"

// Metrics holds all Prometheus metrics for the application.
// All Record methods are safe on a nil receiver, so collaborators can take
// an optional *Metrics.
type Metrics struct {
	registry prometheus.Gatherer

	// Ingestion metrics
	TransactionsFetched *prometheus.CounterVec
	TransactionsStored  prometheus.Counter
	DuplicatesSkipped   prometheus.Counter
	SourceErrors        *prometheus.CounterVec
	LiveLogsReceived    prometheus.Counter
	LiveBufferBlocks    prometheus.Gauge
	HighestBlockSeen    prometheus.Gauge

	// Chain client metrics
	RPCCallLatency   *prometheus.HistogramVec
	BlockTimeLookups *prometheus.CounterVec

	// Scoring metrics
	WalletsScored    prometheus.Counter
	ScoreValues      prometheus.Histogram
	WalletsPerBucket *prometheus.CounterVec

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec
	ReportsGenerated  prometheus.Counter
	ScoresPublished   prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulPipeline  prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses a fresh private registry.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Ingestion metrics
		TransactionsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_fetched_total",
			Help:      "Total number of transactions fetched by source",
		}, []string{"source"}),
		TransactionsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_stored_total",
			Help:      "Total number of transactions stored to database",
		}),
		DuplicatesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "duplicates_skipped_total",
			Help:      "Total number of transactions rejected as already stored",
		}),
		SourceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "source_errors_total",
			Help:      "Total number of transaction source errors by type",
		}, []string{"source", "error_type"}),
		LiveLogsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "live_logs_received_total",
			Help:      "Total number of logs received from the live subscription",
		}),
		LiveBufferBlocks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "live_buffer_blocks",
			Help:      "Current number of blocks held in the live ordering buffer",
		}),
		HighestBlockSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "highest_block_seen",
			Help:      "Highest Ethereum block number seen by the live runner",
		}),

		// Chain client metrics
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "rpc_call_latency_seconds",
			Help:      "Chain API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		BlockTimeLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ethereum",
			Name:      "block_time_lookups_total",
			Help:      "Block timestamp cache lookups by result",
		}, []string{"result"}),

		// Scoring metrics
		WalletsScored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "wallets_scored_total",
			Help:      "Total number of wallets scored",
		}),
		ScoreValues: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "normalized_score",
			Help:      "Distribution of normalized wallet scores",
			Buckets:   prometheus.LinearBuckets(100, 100, 10),
		}),
		WalletsPerBucket: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "wallets_by_category_total",
			Help:      "Total number of wallets by risk category",
		}, []string{"category"}),

		// Pipeline metrics
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),
		ReportsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),
		ScoresPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "scores_published_total",
			Help:      "Total number of scores published to the sink",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulPipeline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// RecordFetched adds n fetched transactions for source.
func (m *Metrics) RecordFetched(source string, n int) {
	if m == nil {
		return
	}
	m.TransactionsFetched.WithLabelValues(source).Add(float64(n))
}

// RecordStored adds n stored transactions.
func (m *Metrics) RecordStored(n int) {
	if m == nil {
		return
	}
	m.TransactionsStored.Add(float64(n))
}

// RecordDuplicates adds n duplicate rejections.
func (m *Metrics) RecordDuplicates(n int) {
	if m == nil {
		return
	}
	m.DuplicatesSkipped.Add(float64(n))
}

// RecordSourceError records a transaction source error.
func (m *Metrics) RecordSourceError(source, errorType string) {
	if m == nil {
		return
	}
	m.SourceErrors.WithLabelValues(source, errorType).Inc()
}

// RecordLiveLog increments the live logs counter.
func (m *Metrics) RecordLiveLog() {
	if m == nil {
		return
	}
	m.LiveLogsReceived.Inc()
}

// UpdateLiveBuffer updates the live buffer and highest block gauges.
func (m *Metrics) UpdateLiveBuffer(blocks int, highest int64) {
	if m == nil {
		return
	}
	m.LiveBufferBlocks.Set(float64(blocks))
	m.HighestBlockSeen.Set(float64(highest))
}

// RecordRPCLatency records chain API call latency.
func (m *Metrics) RecordRPCLatency(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(d.Seconds())
}

// RecordBlockTimeLookup records a block time cache lookup ("hit", "miss" or "error").
func (m *Metrics) RecordBlockTimeLookup(result string) {
	if m == nil {
		return
	}
	m.BlockTimeLookups.WithLabelValues(result).Inc()
}

// RecordScore records one normalized score and its category.
func (m *Metrics) RecordScore(score int, category string) {
	if m == nil {
		return
	}
	m.WalletsScored.Inc()
	m.ScoreValues.Observe(float64(score))
	m.WalletsPerBucket.WithLabelValues(category).Inc()
}

// RecordPipelineRun records a pipeline phase.
func (m *Metrics) RecordPipelineRun(phase, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	m.PipelineDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordReport increments the reports counter.
func (m *Metrics) RecordReport() {
	if m == nil {
		return
	}
	m.ReportsGenerated.Inc()
}

// RecordPublished adds n published scores.
func (m *Metrics) RecordPublished(n int) {
	if m == nil {
		return
	}
	m.ScoresPublished.Add(float64(n))
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(d.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// MarkIngestion sets the last successful ingestion time.
func (m *Metrics) MarkIngestion(t time.Time) {
	if m == nil {
		return
	}
	m.LastSuccessfulIngestion.Set(float64(t.Unix()))
}

// MarkPipeline sets the last successful pipeline time.
func (m *Metrics) MarkPipeline(t time.Time) {
	if m == nil {
		return
	}
	m.LastSuccessfulPipeline.Set(float64(t.Unix()))
}
