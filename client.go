package transcriptpg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/youssefsiam38/transcriptpg/compaction"
	"github.com/youssefsiam38/transcriptpg/hooks"
	"github.com/youssefsiam38/transcriptpg/storage"
)

// Client ties the compactor to hook events, observability hooks and the
// compaction event store.
type Client struct {
	config    Config
	compactor *compaction.Compactor
	matcher   *hooks.Matcher
	hooks     *hooks.Registry
	store     storage.Store
	logger    compaction.Logger
}

// New creates a client. The zero Config is valid and uses defaults.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, NewError("New", err)
	}

	matcher, err := hooks.NewMatcher(cfg.ToolPattern)
	if err != nil {
		return nil, NewError("New", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	compactor, err := compaction.New(o.anthropic, cfg.Compaction, o.logger)
	if err != nil {
		return nil, NewError("New", fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	registry := o.hooks
	if registry == nil {
		registry = hooks.NewRegistry()
	}

	logger := o.logger
	if logger == nil {
		logger = discardLogger{}
	}

	return &Client{
		config:    cfg,
		compactor: compactor,
		matcher:   matcher,
		hooks:     registry,
		store:     o.store,
		logger:    logger,
	}, nil
}

// Hooks returns the registry so callers can attach more hooks
func (c *Client) Hooks() *hooks.Registry {
	return c.hooks
}

// Config returns the effective configuration
func (c *Client) Config() Config {
	return c.config
}

// Compact applies the sliding image window to the transcript at path
func (c *Client) Compact(ctx context.Context, path string) (*compaction.Result, error) {
	return c.compact(ctx, path, "", "")
}

// HandlePostToolUse compacts the transcript named by a PostToolUse event.
// It returns ErrToolNotMatched, without touching the file, when the tool
// does not match the configured pattern.
func (c *Client) HandlePostToolUse(ctx context.Context, input *hooks.PostToolUseInput) (*compaction.Result, error) {
	if input == nil || input.TranscriptPath == "" {
		return nil, NewError("HandlePostToolUse", errors.New("transcript_path is required"))
	}

	sessionID := NormalizeSessionID(input.SessionID, input.TranscriptPath)

	if !c.matcher.Match(input.ToolName) {
		c.logger.Debug("tool not matched, skipping compaction",
			"tool", input.ToolName,
			"pattern", c.matcher.String())
		return nil, ErrToolNotMatched
	}

	if err := c.hooks.TriggerPostToolUse(ctx, input); err != nil {
		return nil, NewErrorWithSession("HandlePostToolUse", sessionID, err).
			WithContext("tool", input.ToolName)
	}

	return c.compact(ctx, input.TranscriptPath, sessionID, input.ToolName)
}

func (c *Client) compact(ctx context.Context, path, sessionID, toolName string) (*compaction.Result, error) {
	if err := c.hooks.TriggerBeforeCompaction(ctx, path); err != nil {
		return nil, NewErrorWithSession("Compact", sessionID, err).WithContext("path", path)
	}

	result, err := c.compactor.Compact(ctx, path)
	if err != nil {
		return nil, NewErrorWithSession("Compact", sessionID, err).WithContext("path", path)
	}

	if err := c.hooks.TriggerAfterCompaction(ctx, result); err != nil {
		return result, NewErrorWithSession("Compact", sessionID, err).WithContext("path", path)
	}

	if c.store != nil && !result.Missing {
		if sessionID == "" {
			sessionID = NormalizeSessionID("", path)
		}
		event := &storage.CompactionEvent{
			SessionID:        sessionID,
			TranscriptPath:   result.Path,
			ToolName:         toolName,
			Window:           result.Window,
			ImageEntries:     result.ImageEntries,
			EntriesCompacted: result.Compacted,
			Rewritten:        result.Rewritten,
			BytesBefore:      int64(result.BytesBefore),
			BytesAfter:       int64(result.BytesAfter),
			DurationMs:       result.Duration.Milliseconds(),
		}
		if err := c.store.SaveCompactionEvent(ctx, event); err != nil {
			// The transcript is already compacted; only the audit record failed.
			return result, NewErrorWithSession("Compact", sessionID, fmt.Errorf("%w: %w", ErrStorageError, err))
		}
	}

	return result, nil
}

// Stats reports image and token statistics for the transcript at path
func (c *Client) Stats(ctx context.Context, path string) (*compaction.Stats, error) {
	stats, err := c.compactor.Stats(ctx, path)
	if err != nil {
		return nil, NewError("Stats", err).WithContext("path", path)
	}
	return stats, nil
}

// History returns recorded compaction events for the given sessions
func (c *Client) History(ctx context.Context, sessionIDs ...string) ([]*storage.CompactionEvent, error) {
	if c.store == nil {
		return nil, NewError("History", ErrNoStore)
	}
	normalized := make([]string, len(sessionIDs))
	for i, id := range sessionIDs {
		normalized[i] = NormalizeSessionID(id, "")
	}
	events, err := c.store.GetCompactionHistory(ctx, normalized...)
	if err != nil {
		return nil, NewError("History", fmt.Errorf("%w: %w", ErrStorageError, err))
	}
	return events, nil
}

// NormalizeSessionID returns the canonical form of a session id. UUIDs are
// lowercased and hyphenated. An empty id is derived from the transcript path
// so repeated calls for one transcript share a session.
func NormalizeSessionID(sessionID, transcriptPath string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		if transcriptPath == "" {
			return ""
		}
		return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+transcriptPath)).String()
	}
	if id, err := uuid.Parse(sessionID); err == nil {
		return id.String()
	}
	return sessionID
}

type discardLogger struct{}

func (discardLogger) Debug(msg string, args ...any) {}
func (discardLogger) Info(msg string, args ...any)  {}
func (discardLogger) Warn(msg string, args ...any)  {}
func (discardLogger) Error(msg string, args ...any) {}
