// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/dossier/pkg/tool"
)

// NewMCPServer exposes the catalog tools of d as an MCP server. Tool errors
// are reported as error results, not protocol errors.
func NewMCPServer(d *Dispatcher, version string) (*server.MCPServer, error) {
	s := server.NewMCPServer("dossier", version, server.WithToolCapabilities(false))

	defs, err := tool.Definitions(tool.All())
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		schema, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("schema of %s: %w", def.Name, err)
		}
		s.AddTool(mcp.NewToolWithRawSchema(def.Name, def.Description, schema), MCPHandler(d, def.Name))
	}
	return s, nil
}

// MCPHandler adapts one tool of d to an MCP tool handler.
func MCPHandler(d *Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := d.Execute(ctx, name, req.GetArguments())
		if err != nil {
			slog.Warn("MCP tool call failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}
