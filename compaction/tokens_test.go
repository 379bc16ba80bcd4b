package compaction

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/youssefsiam38/transcriptpg/transcript"
)

func TestApproximateTokens(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
	}{
		{
			name:     "empty string",
			content:  "",
			expected: 0,
		},
		{
			name:     "short string",
			content:  "hi",
			expected: 1, // (2 + 3) / 4 = 1
		},
		{
			name:     "8 chars",
			content:  "12345678",
			expected: 2, // (8 + 3) / 4 = 2
		},
		{
			name:     "longer text",
			content:  "This is a longer piece of text for testing token approximation.",
			expected: 16, // (63 + 3) / 4 = 16
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApproximateTokens(tt.content)
			if got != tt.expected {
				t.Errorf("ApproximateTokens(%q) = %d, want %d", tt.content, got, tt.expected)
			}
		})
	}
}

func TestTokenCounter_Approximation(t *testing.T) {
	lines := []string{
		`{"type":"user","message":{"role":"user","content":"open the settings app"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"Taking a screenshot"},{"type":"tool_use","id":"t1","name":"screenshot","input":{}}]}}`,
		toolResultLine(2),
		`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","content":[{"type":"image","source":{"data":"` + DefaultPlaceholder + `"}}]}]}}`,
		`not json`,
	}
	entries := transcript.Split([]byte(strings.Join(lines, "\n")))

	tc := NewTokenCounter(nil, DefaultTokenModel, true)
	result, err := tc.CountTokens(context.Background(), entries)
	if err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if result.UsedAPI {
		t.Error("expected approximation without a client")
	}
	if len(result.PerEntry) != len(lines) {
		t.Fatalf("PerEntry has %d items, want %d", len(result.PerEntry), len(lines))
	}
	if result.PerEntry[2] < ImageTokenEstimate {
		t.Errorf("image entry = %d tokens, want at least %d", result.PerEntry[2], ImageTokenEstimate)
	}
	if result.PerEntry[3] >= ImageTokenEstimate {
		t.Errorf("placeholder entry = %d tokens, want far below %d", result.PerEntry[3], ImageTokenEstimate)
	}
	if result.PerEntry[4] != 0 {
		t.Errorf("malformed entry = %d tokens, want 0", result.PerEntry[4])
	}

	sum := 0
	for _, n := range result.PerEntry {
		sum += n
	}
	if sum != result.TotalTokens {
		t.Errorf("TotalTokens = %d, sum of entries = %d", result.TotalTokens, sum)
	}
}

func TestTokenCounter_APIFailureFallsBack(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	}))
	defer srv.Close()

	client := anthropic.NewClient(
		option.WithBaseURL(srv.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	tc := NewTokenCounter(&client, DefaultTokenModel, true)
	entries := transcript.Split([]byte(`{"type":"user","message":{"role":"user","content":"open the settings app"}}`))

	// Concurrent callers share the counter, as Stats does behind the MCP server.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := tc.CountTokens(context.Background(), entries)
			if err != nil {
				t.Errorf("CountTokens: %v", err)
				return
			}
			if result.UsedAPI {
				t.Error("expected approximation after API failure")
			}
		}()
	}
	wg.Wait()

	if calls.Load() == 0 {
		t.Fatal("token counting API was never called")
	}
	seen := calls.Load()
	if _, err := tc.CountTokens(context.Background(), entries); err != nil {
		t.Fatalf("CountTokens: %v", err)
	}
	if calls.Load() != seen {
		t.Error("API called again after falling back")
	}
}

func TestToMessageParams(t *testing.T) {
	lines := []string{
		`{"type":"summary","summary":"no message here"}`,
		`{"type":"user","message":{"role":"user","content":"hello"}}`,
		`{"type":"assistant","message":{"role":"assistant","content":[{"type":"thinking","thinking":"hmm"},{"type":"tool_use","id":"t1","name":"tap","input":{"x":1}}]}}`,
		toolResultLine(3),
		`{"type":"user","message":{"role":"user","content":""}}`,
		`{"type":"system","message":{"role":"system","content":"ignored"}}`,
	}
	params := ToMessageParams(transcript.Split([]byte(strings.Join(lines, "\n"))))

	if len(params) != 3 {
		t.Fatalf("got %d params, want 3", len(params))
	}
	wantRoles := []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser,
		anthropic.MessageParamRoleAssistant,
		anthropic.MessageParamRoleUser,
	}
	wantBlocks := []int{1, 2, 1}
	for i, p := range params {
		if p.Role != wantRoles[i] {
			t.Errorf("params[%d].Role = %s, want %s", i, p.Role, wantRoles[i])
		}
		if len(p.Content) != wantBlocks[i] {
			t.Errorf("params[%d] has %d blocks, want %d", i, len(p.Content), wantBlocks[i])
		}
	}
}

func TestStats(t *testing.T) {
	path := writeTranscript(t, scenarioLog())
	c := newTestCompactor(t, 2)

	before, err := c.Stats(context.Background(), path)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if before.ImageEntries != 6 || before.ImagePayloads != 6 || before.EvictedPayloads != 0 {
		t.Errorf("unexpected stats: %+v", before)
	}
	if before.Entries != 12 {
		t.Errorf("Entries = %d, want 12", before.Entries)
	}
	if !before.NeedsCompaction {
		t.Error("expected NeedsCompaction")
	}

	if _, err := c.Compact(context.Background(), path); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	after, err := c.Stats(context.Background(), path)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if after.EvictedPayloads != 4 {
		t.Errorf("EvictedPayloads = %d, want 4", after.EvictedPayloads)
	}
	if after.NeedsCompaction {
		t.Error("expected no pending compaction")
	}
	if after.ImageBytes >= before.ImageBytes {
		t.Errorf("ImageBytes did not shrink: %d -> %d", before.ImageBytes, after.ImageBytes)
	}
	if after.EstimatedTokens >= before.EstimatedTokens {
		t.Errorf("EstimatedTokens did not shrink: %d -> %d", before.EstimatedTokens, after.EstimatedTokens)
	}
}

func TestStats_Missing(t *testing.T) {
	_, err := newTestCompactor(t, 2).Stats(context.Background(), filepath.Join(t.TempDir(), "none.jsonl"))
	if !errors.Is(err, ErrTranscriptNotFound) {
		t.Errorf("expected ErrTranscriptNotFound, got %v", err)
	}
}
