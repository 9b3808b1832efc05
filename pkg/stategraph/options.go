package stategraph

import (
	"log/slog"

	"github.com/kcollins/stategraph/pkg/stategraph/config"
	"github.com/kcollins/stategraph/pkg/stategraph/observability"
)

// defaultMaxSteps bounds runs that loop without converging.
const defaultMaxSteps = 1000

// executorConfig holds configuration for an Executor.
type executorConfig struct {
	maxSteps   int
	interrupts InterruptPolicy
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	tracing    bool
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		maxSteps: defaultMaxSteps,
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
}

// Option configures an Executor.
type Option func(*executorConfig)

// WithMaxSteps sets the maximum number of node executions per thread.
// Default: 1000.
//
// This prevents cyclic graphs from looping forever. A run that exceeds
// the limit fails with ErrMaxSteps.
func WithMaxSteps(n int) Option {
	return func(c *executorConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithInterruptBefore pauses runs before the named nodes execute.
// The paused thread is continued with Resume, optionally after
// UpdateState edits.
func WithInterruptBefore(nodeIDs ...string) Option {
	return func(c *executorConfig) {
		c.interrupts = NewInterruptPolicy(
			append(setToSlice(c.interrupts.before), nodeIDs...),
			setToSlice(c.interrupts.after),
		)
	}
}

// WithInterruptAfter pauses runs right after the named nodes execute
// and their updates have been persisted.
func WithInterruptAfter(nodeIDs ...string) Option {
	return func(c *executorConfig) {
		c.interrupts = NewInterruptPolicy(
			setToSlice(c.interrupts.before),
			append(setToSlice(c.interrupts.after), nodeIDs...),
		)
	}
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// WithLogger sets the structured logger for execution events.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *executorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Use
// observability.NewMetricsRecorder() for OpenTelemetry or
// observability.NewPrometheusRecorder() for Prometheus.
func WithMetrics(recorder observability.MetricsRecorder) Option {
	return func(c *executorConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// WithTracing enables OpenTelemetry span creation for runs and nodes.
// The global tracer provider must be configured separately.
func WithTracing(enabled bool) Option {
	return func(c *executorConfig) {
		c.tracing = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSettings applies file-loaded executor settings. Store settings
// are handled separately by OpenStore; this applies the execution
// knobs (max steps, interrupt lists).
func WithSettings(settings config.ExecutorSettings) Option {
	return func(c *executorConfig) {
		if settings.MaxSteps > 0 {
			c.maxSteps = settings.MaxSteps
		}
		if len(settings.InterruptBefore) > 0 || len(settings.InterruptAfter) > 0 {
			c.interrupts = NewInterruptPolicy(
				append(setToSlice(c.interrupts.before), settings.InterruptBefore...),
				append(setToSlice(c.interrupts.after), settings.InterruptAfter...),
			)
		}
	}
}
