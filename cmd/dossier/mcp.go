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

package main

import (
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kadirpekel/dossier"
	"github.com/kadirpekel/dossier/pkg/toolset"
)

// MCPCmd serves the data tools over MCP on stdio. No model is involved,
// so only the data-source credentials matter.
type MCPCmd struct{}

func (c *MCPCmd) Run(cli *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	for _, name := range a.cfg.DisabledIntegrations() {
		slog.Warn("Integration disabled: credentials not set", "integration", name)
	}
	d, err := a.dispatcher(ctx)
	if err != nil {
		return err
	}
	s, err := toolset.NewMCPServer(d, dossier.GetVersion().Version)
	if err != nil {
		return err
	}

	slog.Info("MCP server listening on stdio")
	return server.NewStdioServer(s).Listen(ctx, os.Stdin, os.Stdout)
}
