package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Used when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordNodeExecution(context.Context, string, time.Duration, error) {}
func (NoopMetrics) RecordRun(context.Context, string, time.Duration)                  {}
func (NoopMetrics) RecordCheckpoint(context.Context, string, int64)                   {}
func (NoopMetrics) RecordInterrupt(context.Context, string, string)                   {}

// NoopSpanManager is a SpanManager that creates non-recording spans.
// Used when tracing is disabled.
type NoopSpanManager struct{}

var noopTracer = noop.NewTracerProvider().Tracer("stategraph")

func (NoopSpanManager) StartRunSpan(ctx context.Context, threadID string) (context.Context, trace.Span) {
	return noopTracer.Start(ctx, "stategraph.run")
}

func (NoopSpanManager) StartNodeSpan(ctx context.Context, nodeID string) (context.Context, trace.Span) {
	return noopTracer.Start(ctx, "stategraph.node."+nodeID)
}

func (NoopSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span != nil {
		span.End()
	}
}

func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
