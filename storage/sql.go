package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// sqlTxContextKey is the context key for storing *sql.Tx
type sqlTxContextKey struct{}

// WithSQLTx returns a new context carrying tx for SQLStore calls
func WithSQLTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, sqlTxContextKey{}, tx)
}

// executor is satisfied by both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store on database/sql with the lib/pq driver
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an open *sql.DB
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenSQLStore opens databaseURL with the "postgres" driver and pings it.
func OpenSQLStore(ctx context.Context, databaseURL string) (*SQLStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewSQLStore(db), nil
}

// Close closes the underlying database handle
func (s *SQLStore) Close() {
	s.db.Close()
}

// getExecutor returns the transaction from context if present, otherwise the pool
func (s *SQLStore) getExecutor(ctx context.Context) executor {
	if tx, ok := ctx.Value(sqlTxContextKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}
	return s.db
}

// Migrate creates the events table
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.getExecutor(ctx).ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveCompactionEvent saves a compaction event
func (s *SQLStore) SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	err := s.getExecutor(ctx).QueryRowContext(ctx, insertEventQuery,
		event.ID,
		event.SessionID,
		event.TranscriptPath,
		event.ToolName,
		event.Window,
		event.ImageEntries,
		event.EntriesCompacted,
		event.Rewritten,
		event.BytesBefore,
		event.BytesAfter,
		event.DurationMs,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save compaction event: %w", err)
	}

	return nil
}

// GetCompactionHistory retrieves compaction history for the given sessions
func (s *SQLStore) GetCompactionHistory(ctx context.Context, sessionIDs ...string) ([]*CompactionEvent, error) {
	if len(sessionIDs) == 0 {
		return nil, ErrNoSessionID
	}

	// Use pq.Array for PostgreSQL array parameter
	rows, err := s.getExecutor(ctx).QueryContext(ctx, selectHistoryQuery, pq.Array(sessionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query compaction history: %w", err)
	}
	defer rows.Close()

	var events []*CompactionEvent
	for rows.Next() {
		var event CompactionEvent
		if err := rows.Scan(eventDest(&event)...); err != nil {
			return nil, fmt.Errorf("failed to scan compaction event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compaction events: %w", err)
	}

	return events, nil
}

var _ Store = (*SQLStore)(nil)
