package compaction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/youssefsiam38/transcriptpg/transcript"
)

// Logger interface for compaction logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a no-op implementation of Logger.
type noopLogger struct{}

func (noopLogger) Debug(msg string, args ...any) {}
func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// Result contains the outcome of a compaction operation.
type Result struct {
	// Path is the transcript that was compacted.
	Path string

	// Window is the number of image-bearing entries kept.
	Window int

	// Missing is true when the transcript did not exist. Nothing else is set.
	Missing bool

	// TotalLines is the number of lines in the transcript.
	TotalLines int

	// MalformedLines is the number of lines skipped because they were not JSON.
	MalformedLines int

	// ImageEntries is the number of image-bearing entries found (N).
	ImageEntries int

	// Compacted is the number of entries whose images were replaced by this call.
	Compacted int

	// Rewritten reports whether the file on disk was replaced.
	Rewritten bool

	// AppendedLines is the number of lines appended by another writer while
	// compaction ran; they were carried over verbatim.
	AppendedLines int

	// BytesBefore and BytesAfter are the transcript sizes around the
	// rewrite. Lines appended meanwhile are not included in BytesAfter.
	BytesBefore int
	BytesAfter  int

	// Duration is how long the compaction took.
	Duration time.Duration
}

// Compactor keeps a transcript's image payloads within a sliding window.
// It holds no per-transcript state; every call recomputes from the file.
type Compactor struct {
	config       *Config
	logger       Logger
	tokenCounter *TokenCounter

	// beforeReplace, when set, runs after the eviction pass and before
	// the file is replaced.
	beforeReplace func(path string)
}

// New creates a new Compactor. If config is nil, default configuration is
// used. client may be nil, in which case Stats approximates tokens.
func New(client *anthropic.Client, config *Config, logger Logger) (*Compactor, error) {
	if config == nil {
		config = DefaultConfig()
	} else {
		config.ApplyDefaults()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = noopLogger{}
	}

	tokenCounter := NewTokenCounter(client, config.TokenModel, config.UseTokenCountingAPI)
	tokenCounter.placeholder = config.Placeholder

	return &Compactor{
		config:       config,
		logger:       logger,
		tokenCounter: tokenCounter,
	}, nil
}

// Config returns the compactor configuration.
func (c *Compactor) Config() *Config {
	return c.config
}

// Compact applies the configured window to the transcript at path.
func (c *Compactor) Compact(ctx context.Context, path string) (*Result, error) {
	return c.CompactWindow(ctx, path, c.config.Window)
}

// CompactWindow keeps the images of the last window image-bearing entries
// and replaces older ones with the placeholder.
//
// A missing transcript is not an error: the result has Missing set and no
// file is created. Lines that are not JSON are passed through untouched.
// The file is only rewritten when at least one line changed.
func (c *Compactor) CompactWindow(ctx context.Context, path string, window int) (*Result, error) {
	if window <= 0 {
		return nil, NewCompactionError("Compact",
			fmt.Errorf("%w: window must be positive, got %d", ErrInvalidConfig, window)).WithPath(path)
	}
	if err := ctx.Err(); err != nil {
		return nil, NewCompactionError("Compact", err).WithPath(path)
	}

	start := time.Now()
	result := &Result{Path: path, Window: window}

	unlock := transcriptLocks.lock(path)
	defer unlock()

	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("transcript not found, nothing to compact", "path", path)
		result.Missing = true
		return result, nil
	}
	if err != nil {
		return nil, ioError("Stat", path, err)
	}

	if !c.config.DisableFileLock {
		release, err := lockFile(lockPath(path))
		switch {
		case err != nil && lockUnavailable(err):
			c.logger.Warn("cross-process lock unavailable, using in-process lock only",
				"path", path, "error", err)
		case err != nil:
			return nil, ioError("Lock", path, err)
		default:
			defer func() {
				if err := release(); err != nil {
					c.logger.Warn("failed to release transcript lock", "path", path, "error", err)
				}
			}()
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		result.Missing = true
		return result, nil
	}
	if err != nil {
		return nil, ioError("Read", path, err)
	}

	entries := transcript.Split(data)
	p := planEvictions(entries, window)

	result.TotalLines = len(entries)
	result.MalformedLines = p.malformed
	result.ImageEntries = len(p.images)
	result.BytesBefore = len(data)
	result.BytesAfter = len(data)

	for _, idx := range p.malformedLines {
		c.logger.Debug("skipping malformed transcript line", "path", path, "line", idx)
	}

	for _, line := range p.evict {
		edited, changed, err := transcript.ReplaceImages(line.entry.Raw, line.refs, c.config.Placeholder)
		if err != nil {
			c.logger.Warn("failed to replace image payload", "path", path, "line", line.entry.Index, "error", err)
			continue
		}
		if changed {
			line.entry.Raw = edited
			result.Compacted++
		}
	}

	if result.Compacted == 0 {
		result.Duration = time.Since(start)
		c.logger.Debug("transcript within window",
			"path", path, "image_entries", result.ImageEntries, "window", window)
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, NewCompactionError("Compact", err).WithPath(path)
	}

	if c.beforeReplace != nil {
		c.beforeReplace(path)
	}

	out := transcript.Join(entries)
	tail, err := replaceFile(path, data, out)
	if err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			return nil, NewCompactionError("Write", err).WithPath(path)
		}
		return nil, ioError("Write", path, err)
	}

	result.Rewritten = true
	result.AppendedLines = countLines(tail)
	result.BytesAfter = len(out)
	result.Duration = time.Since(start)

	c.logger.Info("compacted transcript",
		"path", path,
		"image_entries", result.ImageEntries,
		"compacted", result.Compacted,
		"bytes_before", result.BytesBefore,
		"bytes_after", result.BytesAfter,
		"duration", result.Duration,
	)

	return result, nil
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	if len(b) > 0 && b[len(b)-1] != '\n' {
		n++
	}
	return n
}
