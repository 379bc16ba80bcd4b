package compaction

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/youssefsiam38/transcriptpg/transcript"
)

// Stats contains statistics about a transcript's compaction state.
type Stats struct {
	// Path is the transcript being analyzed.
	Path string `json:"path"`

	// TotalLines is the number of lines, including blank ones.
	TotalLines int `json:"total_lines"`

	// Entries is the number of lines that parsed as JSON.
	Entries int `json:"entries"`

	// MalformedLines is the number of non-blank lines that did not parse.
	MalformedLines int `json:"malformed_lines"`

	// ImageEntries is the number of image-bearing entries.
	ImageEntries int `json:"image_entries"`

	// ImagePayloads is the number of image payloads across all entries.
	ImagePayloads int `json:"image_payloads"`

	// EvictedPayloads is the number of payloads already holding the placeholder.
	EvictedPayloads int `json:"evicted_payloads"`

	// ImageBytes is the total base64 size of payloads that are not placeholders.
	ImageBytes int `json:"image_bytes"`

	// TotalBytes is the file size.
	TotalBytes int `json:"total_bytes"`

	// EstimatedTokens is the token count of the conversation.
	EstimatedTokens int `json:"estimated_tokens"`

	// UsedTokenAPI is true when EstimatedTokens came from the counting API.
	UsedTokenAPI bool `json:"used_token_api"`

	// NeedsCompaction is true when entries outside the window still carry
	// image data.
	NeedsCompaction bool `json:"needs_compaction"`
}

// Stats reads the transcript at path and reports its image and token
// footprint. Unlike Compact, a missing transcript is an error.
func (c *Compactor) Stats(ctx context.Context, path string) (*Stats, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewCompactionError("Stats", ErrTranscriptNotFound).WithPath(path)
	}
	if err != nil {
		return nil, ioError("Read", path, err)
	}

	entries := transcript.Split(data)
	return c.statsFor(ctx, path, data, entries)
}

func (c *Compactor) statsFor(ctx context.Context, path string, data []byte, entries []*transcript.Entry) (*Stats, error) {
	p := planEvictions(entries, c.config.Window)

	stats := &Stats{
		Path:           path,
		TotalLines:     len(entries),
		MalformedLines: p.malformed,
		ImageEntries:   len(p.images),
		TotalBytes:     len(data),
	}

	for _, e := range entries {
		if e.Valid {
			stats.Entries++
		}
	}

	for _, line := range p.images {
		for _, ref := range line.refs {
			stats.ImagePayloads++
			if ref.Data == c.config.Placeholder {
				stats.EvictedPayloads++
			} else {
				stats.ImageBytes += len(ref.Data)
			}
		}
	}

	for _, line := range p.evict {
		for _, ref := range line.refs {
			if ref.Data != c.config.Placeholder {
				stats.NeedsCompaction = true
			}
		}
	}

	count, err := c.tokenCounter.CountTokens(ctx, entries)
	if err != nil {
		return nil, NewCompactionError("CountTokens", err).WithPath(path)
	}
	stats.EstimatedTokens = count.TotalTokens
	stats.UsedTokenAPI = count.UsedAPI

	return stats, nil
}
