// Package mcpserver exposes the Leader's query-answering operation as an
// MCP tool (§6.1), grounded on the teacher's BaseTool{name, description,
// schema} + Execute(ctx, args) shape (agent/tools/sequentialthinking.go),
// adapted to mark3labs/mcp-go's tool registration API so MCP-aware clients
// (IDEs, agent frameworks) can call HRAP directly instead of only via HTTP.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/podwise/hrap/internal/logger"
	"github.com/podwise/hrap/internal/types"
	"github.com/podwise/hrap/internal/utils"
)

// answerToolName names the tool as it appears to MCP clients.
const answerToolName = "hrap_answer_query"

// PipelineRunner is the seam internal/pipeline.Runner satisfies.
type PipelineRunner interface {
	Run(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace)
}

// New builds an MCP server exposing a single tool that runs a query through
// the full HRAP pipeline and returns the Response as structured content.
func New(runner PipelineRunner, name, version string) *server.MCPServer {
	s := server.NewMCPServer(name, version)

	tool := mcp.NewTool(answerToolName,
		mcp.WithDescription("Runs a natural-language question through HRAP's retrieval-and-answer pipeline and returns an answer plus up to three recommended episodes."),
		mcp.WithString("text", mcp.Required(), mcp.Description("the question to answer")),
		mcp.WithString("user_id", mcp.Description("opaque user identifier, enables personalized recommendations")),
		mcp.WithString("lang", mcp.Description("BCP-47 language hint")),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAnswer(ctx, runner, req)
	})

	return s
}

func handleAnswer(ctx context.Context, runner PipelineRunner, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	cleaned, ok := utils.ValidateInput(text)
	if !ok {
		return mcp.NewToolResultError("text contains control characters or disallowed markup"), nil
	}
	text = cleaned
	userID := req.GetString("user_id", "")
	lang := req.GetString("lang", "")

	traceID := uuid.NewString()
	q := types.Query{ID: uuid.NewString(), Text: text, UserID: userID, Lang: lang}

	logger.Infof(ctx, "mcpserver: answering query trace=%s", traceID)
	resp, _ := runner.Run(ctx, q, traceID)

	body, err := json.Marshal(resp)
	if err != nil {
		return mcp.NewToolResultError("failed to encode response"), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
