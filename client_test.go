package transcriptpg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/youssefsiam38/transcriptpg/compaction"
	"github.com/youssefsiam38/transcriptpg/hooks"
	"github.com/youssefsiam38/transcriptpg/storage"
)

const testSessionID = "5A0C3E1B-7D2F-4C8A-9B6E-1F2D3C4B5A69"

func imageLine(i int) string {
	data := fmt.Sprintf("%s%04d", strings.Repeat("QUJD", 64), i)
	return fmt.Sprintf(`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t%d","content":[{"type":"image","source":{"type":"base64","media_type":"image/png","data":"%s"}}]}]}}`, i, data)
}

// writeSession writes a transcript with n image-bearing entries.
func writeSession(t *testing.T, n int) string {
	t.Helper()
	var lines []string
	for i := 0; i < n; i++ {
		lines = append(lines, fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","content":"step %d"}}`, i))
		lines = append(lines, imageLine(i))
	}
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return path
}

func newTestClient(t *testing.T, window int, pattern string, opts ...Option) *Client {
	t.Helper()
	cfg := Config{
		Compaction:  &compaction.Config{Window: window},
		ToolPattern: pattern,
	}
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Config().Compaction.Window; got != compaction.DefaultWindow {
		t.Errorf("Window = %d, want %d", got, compaction.DefaultWindow)
	}
	if c.Hooks() == nil {
		t.Error("expected a default hook registry")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		opts []Option
	}{
		{name: "negative window", cfg: Config{Compaction: &compaction.Config{Window: -1}}},
		{name: "bad placeholder", cfg: Config{Compaction: &compaction.Config{Placeholder: "!!"}}},
		{name: "bad pattern", cfg: Config{ToolPattern: "("}},
		{name: "nil logger", opts: []Option{WithLogger(nil)}},
		{name: "nil hooks", opts: []Option{WithHooks(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, tt.opts...)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestHandlePostToolUse_NotMatched(t *testing.T) {
	path := writeSession(t, 5)
	before, _ := os.ReadFile(path)

	c := newTestClient(t, 2, "mcp__gbox-android__.*")
	_, err := c.HandlePostToolUse(context.Background(), &hooks.PostToolUseInput{
		SessionID:      testSessionID,
		TranscriptPath: path,
		ToolName:       "Read",
	})
	if !errors.Is(err, ErrToolNotMatched) {
		t.Fatalf("expected ErrToolNotMatched, got %v", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("transcript changed for an unmatched tool")
	}
}

func TestHandlePostToolUse_CompactsAndRecords(t *testing.T) {
	path := writeSession(t, 5)
	store := storage.NewMemoryStore()

	var calls []string
	registry := hooks.NewRegistry()
	registry.OnPostToolUse(func(ctx context.Context, input *hooks.PostToolUseInput) error {
		calls = append(calls, "post:"+input.ToolName)
		return nil
	})
	registry.OnBeforeCompaction(func(ctx context.Context, p string) error {
		calls = append(calls, "before")
		return nil
	})
	registry.OnAfterCompaction(func(ctx context.Context, r *compaction.Result) error {
		calls = append(calls, fmt.Sprintf("after:%d", r.Compacted))
		return nil
	})

	c := newTestClient(t, 2, "mcp__gbox-android__.*", WithStore(store), WithHooks(registry))
	result, err := c.HandlePostToolUse(context.Background(), &hooks.PostToolUseInput{
		SessionID:      testSessionID,
		TranscriptPath: path,
		HookEventName:  hooks.EventPostToolUse,
		ToolName:       "mcp__gbox-android__screenshot",
	})
	if err != nil {
		t.Fatalf("HandlePostToolUse: %v", err)
	}
	if result.ImageEntries != 5 || result.Compacted != 3 || !result.Rewritten {
		t.Errorf("unexpected result: %+v", result)
	}

	want := []string{"post:mcp__gbox-android__screenshot", "before", "after:3"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("hook calls = %v, want %v", calls, want)
	}

	history, err := c.History(context.Background(), testSessionID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 event, got %d", len(history))
	}
	event := history[0]
	if event.SessionID != strings.ToLower(testSessionID) {
		t.Errorf("SessionID = %q, want normalized form", event.SessionID)
	}
	if event.ToolName != "mcp__gbox-android__screenshot" || event.EntriesCompacted != 3 || event.BytesSaved() <= 0 {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestHandlePostToolUse_HookErrorStops(t *testing.T) {
	path := writeSession(t, 5)
	before, _ := os.ReadFile(path)

	stop := errors.New("veto")
	registry := hooks.NewRegistry()
	registry.OnBeforeCompaction(func(ctx context.Context, p string) error { return stop })

	c := newTestClient(t, 2, "", WithHooks(registry))
	_, err := c.HandlePostToolUse(context.Background(), &hooks.PostToolUseInput{TranscriptPath: path, ToolName: "x"})
	if !errors.Is(err, stop) {
		t.Fatalf("expected hook error, got %v", err)
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("transcript changed after a vetoing hook")
	}
}

func TestHandlePostToolUse_RequiresPath(t *testing.T) {
	c := newTestClient(t, 2, "")
	if _, err := c.HandlePostToolUse(context.Background(), &hooks.PostToolUseInput{ToolName: "x"}); err == nil {
		t.Error("expected error for missing transcript path")
	}
}

func TestCompact_MissingRecordsNothing(t *testing.T) {
	store := storage.NewMemoryStore()
	c := newTestClient(t, 2, "", WithStore(store))

	path := filepath.Join(t.TempDir(), "absent.jsonl")
	result, err := c.Compact(context.Background(), path)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if !result.Missing {
		t.Error("expected Missing result")
	}

	history, err := store.GetCompactionHistory(context.Background(), NormalizeSessionID("", path))
	if err != nil {
		t.Fatalf("GetCompactionHistory: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected no events for a missing transcript, got %d", len(history))
	}
}

func TestStats(t *testing.T) {
	c := newTestClient(t, 2, "")
	path := writeSession(t, 4)

	stats, err := c.Stats(context.Background(), path)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ImageEntries != 4 || !stats.NeedsCompaction {
		t.Errorf("unexpected stats: %+v", stats)
	}

	_, err = c.Stats(context.Background(), filepath.Join(t.TempDir(), "none.jsonl"))
	if !errors.Is(err, compaction.ErrTranscriptNotFound) {
		t.Errorf("expected ErrTranscriptNotFound, got %v", err)
	}
}

func TestHistory_NoStore(t *testing.T) {
	c := newTestClient(t, 2, "")
	if _, err := c.History(context.Background(), "s"); !errors.Is(err, ErrNoStore) {
		t.Errorf("expected ErrNoStore, got %v", err)
	}
}

func TestNormalizeSessionID(t *testing.T) {
	derived := NormalizeSessionID("", "/tmp/a.jsonl")
	if derived == "" || derived != NormalizeSessionID("  ", "/tmp/a.jsonl") {
		t.Errorf("derived ids not stable: %q", derived)
	}
	if derived == NormalizeSessionID("", "/tmp/b.jsonl") {
		t.Error("different paths derived the same id")
	}

	tests := []struct {
		in   string
		want string
	}{
		{in: testSessionID, want: strings.ToLower(testSessionID)},
		{in: "agent-run-7", want: "agent-run-7"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := NormalizeSessionID(tt.in, ""); got != tt.want {
			t.Errorf("NormalizeSessionID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestError(t *testing.T) {
	err := NewErrorWithSession("Compact", "s1", ErrStorageError).WithContext("path", "/x")
	if !errors.Is(err, ErrStorageError) {
		t.Error("expected errors.Is to match wrapped sentinel")
	}
	if got := err.Error(); got != "Compact (session=s1): storage operation failed" {
		t.Errorf("Error() = %q", got)
	}
	if err.Context["path"] != "/x" {
		t.Error("context not recorded")
	}
}
