package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/youssefsiam38/transcriptpg/internal/testutil"
)

// storeHistoryRoundTrip exercises one backend against a migrated database.
func storeHistoryRoundTrip(t *testing.T, ctx context.Context, store Store) {
	t.Helper()

	sessionA := uuid.New().String()
	sessionB := uuid.New().String()

	first := &CompactionEvent{
		SessionID:      sessionA,
		TranscriptPath: "/tmp/a.jsonl",
		ToolName:       "mcp__gbox-android__screenshot",
		Window:         3,
		ImageEntries:   3,
	}
	if err := store.SaveCompactionEvent(ctx, first); err != nil {
		t.Fatalf("SaveCompactionEvent failed: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Errorf("Expected ID and CreatedAt to be set, got %+v", first)
	}

	second := &CompactionEvent{
		SessionID:        sessionB,
		TranscriptPath:   "/tmp/b.jsonl",
		Window:           3,
		ImageEntries:     5,
		EntriesCompacted: 2,
		Rewritten:        true,
		BytesBefore:      4096,
		BytesAfter:       1024,
		DurationMs:       7,
	}
	if err := store.SaveCompactionEvent(ctx, second); err != nil {
		t.Fatalf("SaveCompactionEvent failed: %v", err)
	}

	history, err := store.GetCompactionHistory(ctx, sessionB)
	if err != nil {
		t.Fatalf("GetCompactionHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(history))
	}
	got := history[0]
	if got.ID != second.ID || got.EntriesCompacted != 2 || !got.Rewritten || got.BytesSaved() != 3072 {
		t.Errorf("Unexpected event: %+v", got)
	}

	both, err := store.GetCompactionHistory(ctx, sessionA, sessionB)
	if err != nil {
		t.Fatalf("GetCompactionHistory failed: %v", err)
	}
	if len(both) != 2 {
		t.Errorf("Expected 2 events, got %d", len(both))
	}
}

func TestIntegration_PostgresStore_History(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	store := NewPostgresStore(db.Pool)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("Failed to clean tables: %v", err)
	}

	storeHistoryRoundTrip(t, ctx, store)
}

func TestIntegration_PostgresStore_Transaction(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	store := NewPostgresStore(db.Pool)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	sessionID := uuid.New().String()
	txCtx := WithTx(ctx, tx)
	if err := store.SaveCompactionEvent(txCtx, &CompactionEvent{SessionID: sessionID, TranscriptPath: "/tmp/t.jsonl", Window: 3}); err != nil {
		t.Fatalf("SaveCompactionEvent failed: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	history, err := store.GetCompactionHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetCompactionHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected rolled back event to be gone, got %d events", len(history))
	}
}

func TestIntegration_SQLStore_History(t *testing.T) {
	testutil.RequireIntegration(t)

	db := testutil.NewTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	ctx := context.Background()
	store, err := OpenSQLStore(ctx, db.URL)
	if err != nil {
		t.Fatalf("OpenSQLStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := db.CleanTables(ctx); err != nil {
		t.Fatalf("Failed to clean tables: %v", err)
	}

	storeHistoryRoundTrip(t, ctx, store)
}
