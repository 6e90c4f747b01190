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

// Command dossier researches companies and serves the reports.
//
// Usage:
//
//	dossier research general 1101110000001
//	dossier chat finance 1101110000001 "How did revenue change?"
//	dossier serve --config dossier.yaml
//	dossier mcp
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/dossier"
	"github.com/kadirpekel/dossier/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version   VersionCmd   `cmd:"" help:"Show version information."`
	Research  ResearchCmd  `cmd:"" help:"Run a research workflow for a company."`
	Chat      ChatCmd      `cmd:"" help:"Ask a follow-up question on a stored research conversation."`
	Sections  SectionsCmd  `cmd:"" help:"Show the stored report sections."`
	Reset     ResetCmd     `cmd:"" help:"Delete a stored conversation and its sections."`
	Companies CompaniesCmd `cmd:"" help:"Search or import the company registry."`
	Pins      PinsCmd      `cmd:"" help:"Manage pinned companies."`
	Cache     CacheCmd     `cmd:"" help:"Manage the lookup cache."`
	Status    StatusCmd    `cmd:"" help:"Show registry statistics, credentials and provider health."`
	Serve     ServeCmd     `cmd:"" help:"Start the HTTP server."`
	MCP       MCPCmd       `cmd:"" name:"mcp" help:"Serve the data tools over MCP on stdio."`
	Validate  ValidateCmd  `cmd:"" help:"Validate a configuration file."`
	Schema    SchemaCmd    `cmd:"" help:"Print the configuration JSON Schema."`

	Config          string   `short:"c" help:"Config file path, or the key holding it in a remote store (empty = environment only)."`
	ConfigType      string   `name:"config-type" help:"Config source: file, consul, etcd or zookeeper." default:"file" enum:"file,consul,etcd,zookeeper,zk"`
	ConfigEndpoints []string `name:"config-endpoints" help:"Remote config store endpoints (default: the store's local address)."`
	LogLevel        string   `help:"Log level (debug, info, warn, error)."`
	LogFile         string   `help:"Log file path (empty = stderr)."`
	LogFormat       string   `help:"Log format (simple, verbose, text, json)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(dossier.GetVersion())
	return nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env files: %v\n", err)
	}

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("dossier"),
		kong.Description("Company research reports from public data and a tool-using model."),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
