package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements MetricsRecorder on a Prometheus
// registry, for deployments that scrape rather than push.
//
// Metrics (all namespaced "stategraph"):
//   - node_executions_total (counter): node executions. Labels: node_id, status.
//   - node_latency_ms (histogram): node execution latency. Labels: node_id.
//   - runs_total (counter): runs by outcome. Labels: outcome.
//   - run_latency_ms (histogram): run latency. Labels: outcome.
//   - checkpoint_size_bytes (histogram): checkpoint write sizes.
//   - interrupts_total (counter): interrupt pauses. Labels: node_id, phase.
//
// Expose via HTTP for scraping:
//
//	registry := prometheus.NewRegistry()
//	recorder := observability.NewPrometheusRecorder(registry)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
type PrometheusRecorder struct {
	nodeExecutions *prometheus.CounterVec
	nodeLatency    *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runLatency     *prometheus.HistogramVec
	checkpointSize prometheus.Histogram
	interrupts     *prometheus.CounterVec
}

// NewPrometheusRecorder creates and registers all engine metrics with
// the provided registry. A nil registry uses the default registerer.
func NewPrometheusRecorder(registry prometheus.Registerer) *PrometheusRecorder {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)
	latencyBuckets := []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}

	return &PrometheusRecorder{
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "node_executions_total",
			Help:      "Node executions by node and status",
		}, []string{"node_id", "status"}),

		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stategraph",
			Name:      "node_latency_ms",
			Help:      "Node execution latency in milliseconds",
			Buckets:   latencyBuckets,
		}, []string{"node_id"}),

		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "runs_total",
			Help:      "Runs by outcome (completed, paused, failed)",
		}, []string{"outcome"}),

		runLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stategraph",
			Name:      "run_latency_ms",
			Help:      "Run latency in milliseconds by outcome",
			Buckets:   latencyBuckets,
		}, []string{"outcome"}),

		checkpointSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stategraph",
			Name:      "checkpoint_size_bytes",
			Help:      "Checkpoint write size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		}),

		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stategraph",
			Name:      "interrupts_total",
			Help:      "Interrupt pauses by node and phase",
		}, []string{"node_id", "phase"}),
	}
}

// RecordNodeExecution implements MetricsRecorder.
func (p *PrometheusRecorder) RecordNodeExecution(_ context.Context, nodeID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.nodeExecutions.WithLabelValues(nodeID, status).Inc()
	p.nodeLatency.WithLabelValues(nodeID).Observe(float64(duration.Milliseconds()))
}

// RecordRun implements MetricsRecorder.
func (p *PrometheusRecorder) RecordRun(_ context.Context, outcome string, duration time.Duration) {
	p.runs.WithLabelValues(outcome).Inc()
	p.runLatency.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

// RecordCheckpoint implements MetricsRecorder.
func (p *PrometheusRecorder) RecordCheckpoint(_ context.Context, _ string, sizeBytes int64) {
	p.checkpointSize.Observe(float64(sizeBytes))
}

// RecordInterrupt implements MetricsRecorder.
func (p *PrometheusRecorder) RecordInterrupt(_ context.Context, nodeID, phase string) {
	p.interrupts.WithLabelValues(nodeID, phase).Inc()
}
