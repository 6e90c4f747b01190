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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/store"
)

// CompaniesCmd manages the company registry.
type CompaniesCmd struct {
	Search CompaniesSearchCmd `cmd:"" help:"Search companies by name."`
	Import CompaniesImportCmd `cmd:"" help:"Import companies from a CSV or XLSX file."`
}

// CompaniesSearchCmd lists companies whose names match a keyword.
type CompaniesSearchCmd struct {
	Keyword string `arg:"" help:"Name prefix or substring."`
	Limit   int    `short:"n" help:"Maximum number of results." default:"20"`
}

func (c *CompaniesSearchCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	matches, err := st.SearchCompanies(ctx, c.Keyword, c.Limit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("No company matches %q.\n", c.Keyword)
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%-30s %-14s %-9s %s%s %s%s\n", m.Name, m.CorpRegNo, m.CorpCode, colorDim, m.CorpClass, m.Industry, colorReset)
	}
	return nil
}

// CompaniesImportCmd loads a registry export into the store.
type CompaniesImportCmd struct {
	Path  string `arg:"" type:"existingfile" help:"CSV or XLSX file."`
	Sheet string `help:"XLSX sheet name (default: first sheet)."`
}

func (c *CompaniesImportCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli)
	if err != nil {
		return err
	}
	defer a.close()

	companies, err := c.read()
	if err != nil {
		return err
	}
	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	n, err := importCompanies(ctx, st, companies)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d companies from %s.\n", n, filepath.Base(c.Path))
	return nil
}

func (c *CompaniesImportCmd) read() ([]company.Company, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(c.Path)) {
	case ".csv":
		return company.ReadCSV(f)
	case ".xlsx", ".xlsm":
		return company.ReadXLSX(f, c.Sheet)
	default:
		return nil, fmt.Errorf("unsupported file type %q: expected .csv or .xlsx", filepath.Ext(c.Path))
	}
}

func importCompanies(ctx context.Context, st store.Companies, companies []company.Company) (int, error) {
	for i, co := range companies {
		if err := st.UpsertCompany(ctx, co); err != nil {
			return i, fmt.Errorf("failed to import %s: %w", co.CorpRegNo, err)
		}
		if (i+1)%1000 == 0 {
			slog.Info("Importing companies", "done", i+1, "total", len(companies))
		}
	}
	return len(companies), nil
}
