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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/dossier/pkg/cache"
	"github.com/kadirpekel/dossier/pkg/config"
	"github.com/kadirpekel/dossier/pkg/store"
	"github.com/kadirpekel/dossier/pkg/toolset"
)

// CacheCmd manages the lookup cache.
type CacheCmd struct {
	Clear CacheClearCmd `cmd:"" help:"Drop cached lookups."`
}

// CacheClearCmd drops all entries, or those of one subject.
type CacheClearCmd struct {
	Scope string `arg:"" optional:"" help:"Company key or raw key fragment (empty = everything)."`
}

func (c *CacheClearCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	cc, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	if a.cfg.Cache.Backend == cache.BackendMemory {
		fmt.Fprintln(os.Stderr, "The memory cache lives inside the server process; use DELETE /v1/cache there.")
	}

	if c.Scope == "" {
		if err := cc.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	}

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	var n int
	co, err := st.GetCompany(ctx, c.Scope)
	if errors.Is(err, store.ErrNotFound) {
		co, err = st.GetCompanyByCorpCode(ctx, c.Scope)
	}
	switch {
	case err == nil:
		n, err = toolset.ClearSubject(ctx, cc, *co)
	case errors.Is(err, store.ErrNotFound):
		n, err = cc.ClearScope(ctx, c.Scope)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Cleared %d entries for %s.\n", n, c.Scope)
	return nil
}

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config      string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH" type:"existingfile"`
	Format      string `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`
	Strict      bool   `help:"Reject unknown keys."`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

// ValidationResult is the json output of validate.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	File   string `json:"file"`
	Error  string `json:"error,omitempty"`
	Config any    `json:"config,omitempty"`
}

func (c *ValidateCmd) Run() error {
	data, err := os.ReadFile(c.Config)
	if err != nil {
		return err
	}

	cfg, err := config.Parse(data, c.Strict)
	if c.Format == "json" {
		res := ValidationResult{Valid: err == nil, File: c.Config}
		if err != nil {
			res.Error = err.Error()
		} else if c.PrintConfig {
			res.Config = cfg
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return encErr
		}
		if err != nil {
			return errors.New("config is invalid")
		}
		return nil
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", c.Config, err)
		return errors.New("config is invalid")
	}
	if c.PrintConfig {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	fmt.Printf("%s: valid\n", c.Config)
	return nil
}

// SchemaCmd prints the JSON Schema of the configuration.
type SchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run() error {
	enc := json.NewEncoder(os.Stdout)
	if !c.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(config.Schema())
}
