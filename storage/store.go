// Package storage records compaction events so long-running sessions can be
// audited after the fact. Three backends share one interface: an in-memory
// store for tests and single-shot CLI runs, a pgx-backed PostgreSQL store and
// a database/sql store on top of lib/pq.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNoSessionID is returned when history is requested without a session.
var ErrNoSessionID = errors.New("at least one session id is required")

// Store defines the storage interface for compaction events
type Store interface {
	// Migrate creates the events table if it does not exist yet.
	Migrate(ctx context.Context) error

	// SaveCompactionEvent persists event. An empty ID is filled in.
	SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error

	// GetCompactionHistory returns the events recorded for the given
	// sessions, newest first.
	GetCompactionHistory(ctx context.Context, sessionIDs ...string) ([]*CompactionEvent, error)
}

// CompactionEvent represents one compaction run against a transcript
type CompactionEvent struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	TranscriptPath   string    `json:"transcript_path"`
	ToolName         string    `json:"tool_name,omitempty"`
	Window           int       `json:"window"`
	ImageEntries     int       `json:"image_entries"`
	EntriesCompacted int       `json:"entries_compacted"`
	Rewritten        bool      `json:"rewritten"`
	BytesBefore      int64     `json:"bytes_before"`
	BytesAfter       int64     `json:"bytes_after"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// BytesSaved returns how much the rewrite shrank the transcript.
func (e *CompactionEvent) BytesSaved() int64 {
	if e == nil || !e.Rewritten {
		return 0
	}
	return e.BytesBefore - e.BytesAfter
}

// Schema is the DDL applied by Migrate on both PostgreSQL backends.
const Schema = `
CREATE TABLE IF NOT EXISTS transcriptpg_compaction_events (
	id                UUID PRIMARY KEY,
	session_id        TEXT NOT NULL,
	transcript_path   TEXT NOT NULL,
	tool_name         TEXT NOT NULL DEFAULT '',
	window_size       INTEGER NOT NULL,
	image_entries     INTEGER NOT NULL DEFAULT 0,
	entries_compacted INTEGER NOT NULL DEFAULT 0,
	rewritten         BOOLEAN NOT NULL DEFAULT FALSE,
	bytes_before      BIGINT NOT NULL DEFAULT 0,
	bytes_after       BIGINT NOT NULL DEFAULT 0,
	duration_ms       BIGINT NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transcriptpg_compaction_events_session
	ON transcriptpg_compaction_events (session_id, created_at DESC);
`

const insertEventQuery = `
	INSERT INTO transcriptpg_compaction_events
		(id, session_id, transcript_path, tool_name, window_size,
		 image_entries, entries_compacted, rewritten,
		 bytes_before, bytes_after, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	RETURNING created_at
`

const selectHistoryQuery = `
	SELECT id, session_id, transcript_path, tool_name, window_size,
	       image_entries, entries_compacted, rewritten,
	       bytes_before, bytes_after, duration_ms, created_at
	FROM transcriptpg_compaction_events
	WHERE session_id = ANY($1)
	ORDER BY created_at DESC
`
