package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podwise/hrap/internal/types"
)

type fakeRunner struct {
	resp types.Response
}

func (r *fakeRunner) Run(ctx context.Context, q types.Query, traceID string) (types.Response, *types.Trace) {
	return r.resp, nil
}

func TestHandleAnswerRequiresText(t *testing.T) {
	req := mcp.CallToolRequest{}
	result, err := handleAnswer(context.Background(), &fakeRunner{}, req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleAnswerReturnsEncodedResponse(t *testing.T) {
	runner := &fakeRunner{resp: types.Response{AnswerText: "because the metric improved"}}

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"text": "why did retention improve?"}

	result, err := handleAnswer(context.Background(), runner, req)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var got types.Response
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), &got))
	assert.Equal(t, "because the metric improved", got.AnswerText)
}

func TestHandleAnswerRejectsControlCharacters(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"text": "why\x00not"}

	result, err := handleAnswer(context.Background(), &fakeRunner{}, req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestNewRegistersAnswerTool(t *testing.T) {
	s := New(&fakeRunner{}, "hrap", "1.0.0")
	assert.NotNil(t, s)
}
