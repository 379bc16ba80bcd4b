package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// txContextKey is the context key for storing pgx.Tx
type txContextKey struct{}

// WithTx returns a new context with the given transaction
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves the transaction from context, or nil if not present
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// querier is a common interface for pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL with pgx
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgresStore connects a pool to databaseURL and verifies it with a ping.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStore(pool), nil
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// getQuerier returns the transaction from context if present, otherwise the pool
func (s *PostgresStore) getQuerier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

// Migrate creates the events table
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.getQuerier(ctx).Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveCompactionEvent saves a compaction event
func (s *PostgresStore) SaveCompactionEvent(ctx context.Context, event *CompactionEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	err := s.getQuerier(ctx).QueryRow(ctx, insertEventQuery,
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
func (s *PostgresStore) GetCompactionHistory(ctx context.Context, sessionIDs ...string) ([]*CompactionEvent, error) {
	if len(sessionIDs) == 0 {
		return nil, ErrNoSessionID
	}

	rows, err := s.getQuerier(ctx).Query(ctx, selectHistoryQuery, sessionIDs)
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

// eventDest lists scan targets in selectHistoryQuery column order.
func eventDest(event *CompactionEvent) []any {
	return []any{
		&event.ID,
		&event.SessionID,
		&event.TranscriptPath,
		&event.ToolName,
		&event.Window,
		&event.ImageEntries,
		&event.EntriesCompacted,
		&event.Rewritten,
		&event.BytesBefore,
		&event.BytesAfter,
		&event.DurationMs,
		&event.CreatedAt,
	}
}

var _ Store = (*PostgresStore)(nil)
