package hooks

import (
	"context"
	"log"

	"github.com/youssefsiam38/transcriptpg/compaction"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// Register attaches the logging hooks to r.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnPostToolUse(h.PostToolUse)
	r.OnBeforeCompaction(h.BeforeCompaction)
	r.OnAfterCompaction(h.AfterCompaction)
}

// PostToolUse logs the tool call that fired the hook
func (h *LoggingHooks) PostToolUse(ctx context.Context, input *PostToolUseInput) error {
	h.logger.Printf("[transcriptpg] Tool '%s' finished (session=%s)", input.ToolName, input.SessionID)
	return nil
}

// BeforeCompaction logs before transcript compaction
func (h *LoggingHooks) BeforeCompaction(ctx context.Context, transcriptPath string) error {
	h.logger.Printf("[transcriptpg] Compacting %s", transcriptPath)
	return nil
}

// AfterCompaction logs the compaction outcome
func (h *LoggingHooks) AfterCompaction(ctx context.Context, result *compaction.Result) error {
	if result.Missing {
		h.logger.Printf("[transcriptpg] Transcript %s not found, nothing to do", result.Path)
		return nil
	}

	reduction := float64(0)
	if result.BytesBefore > 0 {
		reduction = float64(result.BytesBefore-result.BytesAfter) / float64(result.BytesBefore) * 100
	}

	h.logger.Printf("[transcriptpg] Compaction complete: found=%d compacted=%d rewritten=%t window=%d (%d → %d bytes, %.1f%% reduction)",
		result.ImageEntries, result.Compacted, result.Rewritten, result.Window,
		result.BytesBefore, result.BytesAfter, reduction)
	return nil
}

// MetricsHooks collects metrics for monitoring
type MetricsHooks struct {
	OnMetric func(name string, value float64, tags map[string]string)
}

// NewMetricsHooks creates metrics collection hooks
func NewMetricsHooks(onMetric func(string, float64, map[string]string)) *MetricsHooks {
	return &MetricsHooks{OnMetric: onMetric}
}

// Register attaches the metrics hooks to r.
func (h *MetricsHooks) Register(r *Registry) {
	r.OnPostToolUse(h.PostToolUse)
	r.OnAfterCompaction(h.AfterCompaction)
}

// PostToolUse counts tool calls by name
func (h *MetricsHooks) PostToolUse(ctx context.Context, input *PostToolUseInput) error {
	h.OnMetric("transcript.tool.calls", 1, map[string]string{"tool": input.ToolName})
	return nil
}

// AfterCompaction records compaction metrics
func (h *MetricsHooks) AfterCompaction(ctx context.Context, result *compaction.Result) error {
	if result.Missing {
		h.OnMetric("transcript.compaction.missing", 1, nil)
		return nil
	}

	h.OnMetric("transcript.compaction.image_entries", float64(result.ImageEntries), nil)
	h.OnMetric("transcript.compaction.compacted", float64(result.Compacted), nil)
	h.OnMetric("transcript.compaction.bytes_saved", float64(result.BytesBefore-result.BytesAfter), nil)

	if result.Rewritten {
		h.OnMetric("transcript.compaction.rewrites", 1, nil)
	}

	return nil
}
