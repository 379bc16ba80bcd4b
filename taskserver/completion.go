package taskserver

import (
	"github.com/tidwall/gjson"
	"github.com/youssefsiam38/transcriptpg/transcript"
)

// Qualified tool names as they appear in tool_use blocks.
const (
	FinishTaskTool   = "mcp__" + ServerName + "__" + ToolFinishTask
	AnswerActionTool = "mcp__" + ServerName + "__" + ToolAnswerAction
)

// IsFinishTask reports whether toolName ends the task.
func IsFinishTask(toolName string) bool {
	return toolName == FinishTaskTool
}

// IsAnswerAction reports whether toolName submits an answer.
func IsAnswerAction(toolName string) bool {
	return toolName == AnswerActionTool
}

// Completion is what a transcript says about task completion so far.
type Completion struct {
	Finished bool
	Success  bool
	// Answers holds every non-empty answer_action text in order.
	Answers []string
}

// ScanCompletion walks the assistant tool_use blocks in entries. A later
// finish_task call overrides an earlier one.
func ScanCompletion(entries []*transcript.Entry) Completion {
	var c Completion
	for _, e := range entries {
		if !e.Valid {
			continue
		}
		content := e.Result().Get("message.content")
		if !content.IsArray() {
			continue
		}
		content.ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() != "tool_use" {
				return true
			}
			name := block.Get("name").String()
			switch {
			case IsFinishTask(name):
				c.Finished = true
				c.Success = block.Get("input.success").Bool()
			case IsAnswerAction(name):
				if text := block.Get("input.text").String(); text != "" {
					c.Answers = append(c.Answers, text)
				}
			}
			return true
		})
	}
	return c
}
