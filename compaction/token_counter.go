package compaction

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"
	"github.com/youssefsiam38/transcriptpg/transcript"
)

// TokenCounter provides token counting for transcripts using the Claude API
// with a character-based approximation fallback.
type TokenCounter struct {
	client      *anthropic.Client
	useAPI      bool
	model       string
	placeholder string
	fallback    atomic.Bool // set once the API has failed; approximation from then on
}

// TokenCountResult contains the result of a token count operation.
type TokenCountResult struct {
	// TotalTokens is the total token count for all entries.
	TotalTokens int

	// UsedAPI indicates whether the Claude API was used (true) or the
	// character-based approximation fallback was used (false).
	UsedAPI bool

	// PerEntry contains the estimated token count per entry.
	// Only populated when using the fallback approximation.
	PerEntry []int
}

// NewTokenCounter creates a new TokenCounter with the given Anthropic client.
// If useAPI is false or client is nil, only approximation is used.
func NewTokenCounter(client *anthropic.Client, model string, useAPI bool) *TokenCounter {
	return &TokenCounter{
		client:      client,
		model:       model,
		useAPI:      useAPI,
		placeholder: DefaultPlaceholder,
	}
}

// CountTokens counts the tokens of the conversation held in entries.
// It first attempts the Claude API, falling back to approximation if the
// API is unavailable, disabled, or has failed before.
func (tc *TokenCounter) CountTokens(ctx context.Context, entries []*transcript.Entry) (*TokenCountResult, error) {
	if tc.useAPI && tc.client != nil && !tc.fallback.Load() {
		result, err := tc.countWithAPI(ctx, entries)
		if err == nil {
			return result, nil
		}
		// API failed, fall back to approximation
		tc.fallback.Store(true)
	}

	return tc.countWithApproximation(entries), nil
}

// countWithAPI uses the Claude token counting API. Image blocks are not
// sent; their estimate is added to the API count.
func (tc *TokenCounter) countWithAPI(ctx context.Context, entries []*transcript.Entry) (*TokenCountResult, error) {
	messages := ToMessageParams(entries)
	images := 0
	for _, e := range entries {
		images += tc.imageTokens(e)
	}

	if len(messages) == 0 {
		return &TokenCountResult{TotalTokens: images, UsedAPI: true}, nil
	}

	result, err := tc.client.Messages.CountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(tc.model),
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenCountingFailed, err)
	}

	return &TokenCountResult{
		TotalTokens: int(result.InputTokens) + images,
		UsedAPI:     true,
	}, nil
}

// countWithApproximation uses character-based estimation (~4 chars per token).
func (tc *TokenCounter) countWithApproximation(entries []*transcript.Entry) *TokenCountResult {
	perEntry := make([]int, len(entries))
	total := 0

	for i, e := range entries {
		tokens := tc.estimateEntryTokens(e)
		perEntry[i] = tokens
		total += tokens
	}

	return &TokenCountResult{
		TotalTokens: total,
		UsedAPI:     false,
		PerEntry:    perEntry,
	}
}

// estimateEntryTokens estimates tokens for the message carried by an entry.
// Entries without a message (summaries, metadata) count zero.
func (tc *TokenCounter) estimateEntryTokens(e *transcript.Entry) int {
	if !e.Valid {
		return 0
	}
	msg := e.Result().Get("message")
	if !msg.Exists() {
		return tc.imageTokens(e)
	}

	// Add overhead for message structure (~4 tokens for role, etc.)
	total := 4

	content := msg.Get("content")
	if content.Type == gjson.String {
		return total + ApproximateTokens(content.Str)
	}

	content.ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			total += ApproximateTokens(block.Get("text").String())
		case "thinking":
			total += ApproximateTokens(block.Get("thinking").String())
		case "tool_use":
			// Tool name + ID overhead
			total += ApproximateTokens(block.Get("name").String()) + 10
			total += ApproximateTokens(block.Get("input").Raw)
		case "tool_result":
			// Tool result ID overhead
			total += 10
			total += ApproximateTokens(toolResultText(block))
		}
		return true
	})

	return total + tc.imageTokens(e)
}

// imageTokens estimates the cost of the entry's images.
func (tc *TokenCounter) imageTokens(e *transcript.Entry) int {
	total := 0
	for _, ref := range e.Images() {
		if ref.Data == tc.placeholder {
			total += PlaceholderTokenEstimate
		} else {
			total += ImageTokenEstimate
		}
	}
	return total
}

// ToMessageParams converts transcript entries carrying a user or assistant
// message into Anthropic message params. Text, tool use and tool result
// blocks are kept; images are skipped.
func ToMessageParams(entries []*transcript.Entry) []anthropic.MessageParam {
	result := make([]anthropic.MessageParam, 0, len(entries))

	for _, e := range entries {
		if !e.Valid {
			continue
		}
		msg := e.Result().Get("message")

		var role anthropic.MessageParamRole
		switch msg.Get("role").String() {
		case "user":
			role = anthropic.MessageParamRoleUser
		case "assistant":
			role = anthropic.MessageParamRoleAssistant
		default:
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		raw := msg.Get("content")
		if raw.Type == gjson.String {
			if raw.Str != "" {
				content = append(content, anthropic.NewTextBlock(raw.Str))
			}
		} else {
			raw.ForEach(func(_, block gjson.Result) bool {
				switch block.Get("type").String() {
				case "text":
					if text := block.Get("text").String(); text != "" {
						content = append(content, anthropic.NewTextBlock(text))
					}
				case "thinking":
					// Thinking blocks are included as text for token counting
					if text := block.Get("thinking").String(); text != "" {
						content = append(content, anthropic.NewTextBlock(text))
					}
				case "tool_use":
					input := block.Get("input").Value()
					if input == nil {
						input = map[string]any{}
					}
					content = append(content, anthropic.NewToolUseBlock(
						block.Get("id").String(), input, block.Get("name").String()))
				case "tool_result":
					content = append(content, anthropic.NewToolResultBlock(
						block.Get("tool_use_id").String(), toolResultText(block), block.Get("is_error").Bool()))
				}
				return true
			})
		}

		if len(content) > 0 {
			result = append(result, anthropic.MessageParam{
				Role:    role,
				Content: content,
			})
		}
	}

	return result
}

// toolResultText flattens a tool_result block's content to text.
func toolResultText(block gjson.Result) string {
	content := block.Get("content")
	if content.Type == gjson.String {
		return content.Str
	}
	var parts []string
	content.ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() == "text" {
			parts = append(parts, item.Get("text").String())
		}
		return true
	})
	return strings.Join(parts, "\n")
}
