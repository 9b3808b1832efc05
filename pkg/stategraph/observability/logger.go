// Package observability provides structured logging, metrics, and
// tracing for graph execution.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// Everything is opt-in; no-op implementations are used when disabled.
package observability

import (
	"log/slog"
)

// EnrichLogger adds execution context to a logger.
// Returns a new logger with thread_id and node_id fields.
func EnrichLogger(logger *slog.Logger, threadID, nodeID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("thread_id", threadID),
		slog.String("node_id", nodeID),
	)
}

// LogRunStart logs the start of a run.
func LogRunStart(logger *slog.Logger, threadID string, step int) {
	if logger == nil {
		return
	}
	logger.Info("run starting",
		slog.String("thread_id", threadID),
		slog.Int("step", step),
	)
}

// LogRunComplete logs successful run completion.
func LogRunComplete(logger *slog.Logger, threadID string, durationMs float64, steps int) {
	if logger == nil {
		return
	}
	logger.Info("run completed",
		slog.String("thread_id", threadID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("steps", steps),
	)
}

// LogRunPaused logs a run hitting an interrupt point.
func LogRunPaused(logger *slog.Logger, threadID, pendingNode string, step int) {
	if logger == nil {
		return
	}
	logger.Info("run paused",
		slog.String("thread_id", threadID),
		slog.String("pending_node", pendingNode),
		slog.Int("step", step),
	)
}

// LogRunResumed logs a paused run being resumed.
func LogRunResumed(logger *slog.Logger, threadID, nextNode string, step int) {
	if logger == nil {
		return
	}
	logger.Info("run resumed",
		slog.String("thread_id", threadID),
		slog.String("next_node", nextNode),
		slog.Int("step", step),
	)
}

// LogRunError logs run failure.
func LogRunError(logger *slog.Logger, threadID string, err error, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("run failed",
		slog.String("thread_id", threadID),
		slog.String("error", err.Error()),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution failure.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogCheckpoint logs a checkpoint write.
func LogCheckpoint(logger *slog.Logger, threadID string, step int, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint written",
		slog.String("thread_id", threadID),
		slog.Int("step", step),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogStateUpdated logs a human review edit of the latest checkpoint.
func LogStateUpdated(logger *slog.Logger, threadID string, step int) {
	if logger == nil {
		return
	}
	logger.Info("state updated",
		slog.String("thread_id", threadID),
		slog.Int("step", step),
	)
}
