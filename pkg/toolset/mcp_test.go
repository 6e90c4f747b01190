package toolset

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/tool"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCPHandler(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	ctx := context.Background()

	res, err := MCPHandler(d, string(tool.GetFSCOutline))(ctx, callRequest(string(tool.GetFSCOutline), map[string]any{"jurir_no": "1101110000001"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"corpNm": "Acme Industries"`)

	res, err = MCPHandler(d, string(tool.FetchWebpage))(ctx, callRequest(string(tool.FetchWebpage), map[string]any{"url": "https://acme.example.com"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not available")
}

func TestNewMCPServer(t *testing.T) {
	d, _, _, _, _ := newDispatcher(t)
	s, err := NewMCPServer(d, "test")
	require.NoError(t, err)
	assert.NotNil(t, s)
}
