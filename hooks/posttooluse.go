// Package hooks wires the compactor into the agent runtime's hook events
// and provides observability hooks around compaction.
package hooks

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
)

// EventPostToolUse is the hook_event_name sent after a tool call.
const EventPostToolUse = "PostToolUse"

// PostToolUseInput is the JSON document the agent runtime writes to a
// hook command's stdin after a tool call completes.
type PostToolUseInput struct {
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	CWD            string          `json:"cwd,omitempty"`
	HookEventName  string          `json:"hook_event_name"`
	ToolName       string          `json:"tool_name"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	ToolResponse   json.RawMessage `json:"tool_response,omitempty"`
}

// DecodePostToolUseInput reads a single hook input document from r.
// A missing transcript_path is an error; everything else is optional.
func DecodePostToolUseInput(r io.Reader) (*PostToolUseInput, error) {
	var input PostToolUseInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return nil, fmt.Errorf("decode hook input: %w", err)
	}
	if input.TranscriptPath == "" {
		return nil, fmt.Errorf("decode hook input: transcript_path is required")
	}
	return &input, nil
}

// Matcher decides which tool calls trigger compaction.
type Matcher struct {
	pattern *regexp.Regexp
}

// NewMatcher compiles pattern. An empty pattern matches every tool.
// Patterns are anchored, so "mcp__gbox-android__.*" matches whole names only.
func NewMatcher(pattern string) (*Matcher, error) {
	if pattern == "" {
		return &Matcher{}, nil
	}
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid tool pattern %q: %w", pattern, err)
	}
	return &Matcher{pattern: re}, nil
}

// Match reports whether toolName should trigger compaction.
func (m *Matcher) Match(toolName string) bool {
	if m == nil || m.pattern == nil {
		return true
	}
	return m.pattern.MatchString(toolName)
}

// String returns the configured pattern.
func (m *Matcher) String() string {
	if m == nil || m.pattern == nil {
		return ""
	}
	return m.pattern.String()
}
