// Package taskserver implements the task-completion MCP server that device
// agents call to submit answers and signal the end of a task.
package taskserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/youssefsiam38/transcriptpg/compaction"
)

// ServerName is the MCP server name. Tool names seen by the agent are
// prefixed with "mcp__" + ServerName + "__".
const ServerName = "task-completion"

// Version is reported during MCP initialization.
const Version = "1.0.0"

// Tool names as registered on the server.
const (
	ToolAnswerAction    = "answer_action"
	ToolFinishTask      = "finish_task"
	ToolTranscriptStats = "transcript_stats"
)

// AnswerPrefix prefixes the answer_action result text.
const AnswerPrefix = "ANSWER_ACTION:"

// New builds the task-completion server. When compactor is non-nil a
// transcript_stats tool is registered as well.
func New(compactor *compaction.Compactor) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		Version,
		server.WithToolCapabilities(true),
	)

	answerTool := mcp.NewTool(ToolAnswerAction,
		mcp.WithDescription("Provide an answer that will be submitted to the evaluation system."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The answer text"),
		),
	)
	s.AddTool(answerTool, handleAnswerAction)

	finishTool := mcp.NewTool(ToolFinishTask,
		mcp.WithDescription("Signal that a task has been completed."),
		mcp.WithBoolean("success",
			mcp.Required(),
			mcp.Description("Whether the task was completed successfully"),
		),
	)
	s.AddTool(finishTool, handleFinishTask)

	if compactor != nil {
		statsTool := mcp.NewTool(ToolTranscriptStats,
			mcp.WithDescription("Report image and token statistics for a session transcript."),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Absolute path of the JSON-lines transcript"),
			),
		)
		s.AddTool(statsTool, statsHandler(compactor))
	}

	return s
}

// ServeStdio runs s over stdin/stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func handleAnswerAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(AnswerPrefix + req.GetString("text", "")), nil
}

func handleFinishTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FinishMessage(req.GetBool("success", false))), nil
}

// FinishMessage is the acknowledgement returned by finish_task.
func FinishMessage(success bool) string {
	status := "Failed"
	if success {
		status = "Success"
	}
	return "Task completion acknowledged: " + status
}

func statsHandler(compactor *compaction.Compactor) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path parameter is required"), nil
		}

		stats, err := compactor.Stats(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
		}

		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode stats: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
