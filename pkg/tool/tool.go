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

// Package tool defines the closed set of research tools the model may call,
// their argument types and schemas, and the rendering of tool results.
package tool

import (
	"context"
	"errors"
)

// ErrUnknownTool is returned for a tool name outside the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ID names a tool in the closed catalog.
type ID string

const (
	SearchGoogle            ID = "search_google"
	FetchWebpage            ID = "fetch_webpage"
	GetCompanyInfo          ID = "get_company_info"
	GetFSCOutline           ID = "get_fsc_outline"
	FetchDARTFinance        ID = "fetch_dart_finance"
	FetchFSCSummary         ID = "fetch_fsc_summary"
	FetchFSCBalanceSheet    ID = "fetch_fsc_balance_sheet"
	FetchFSCIncomeStatement ID = "fetch_fsc_income_statement"
	FetchDARTExecutives     ID = "fetch_dart_executives"
	FetchNiceBizExecutives  ID = "fetch_nicebiz_executives"
)

// All lists every catalog tool in a stable order.
func All() []ID {
	return []ID{
		SearchGoogle,
		FetchWebpage,
		GetCompanyInfo,
		GetFSCOutline,
		FetchDARTFinance,
		FetchFSCSummary,
		FetchFSCBalanceSheet,
		FetchFSCIncomeStatement,
		FetchDARTExecutives,
		FetchNiceBizExecutives,
	}
}

// ParseID maps a tool name to its ID.
func ParseID(name string) (ID, bool) {
	id := ID(name)
	if _, ok := catalog[id]; ok {
		return id, true
	}
	return "", false
}

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Call is a tool invocation requested by the model.
type Call struct {
	ID    string
	Name  string
	Input map[string]any
}

// Executor runs a tool by name. Implementations return an error for tool
// failures; callers turn that error into a diagnostic string for the model.
type Executor interface {
	Execute(ctx context.Context, name string, input map[string]any) (string, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, name string, input map[string]any) (string, error)

func (f ExecutorFunc) Execute(ctx context.Context, name string, input map[string]any) (string, error) {
	return f(ctx, name, input)
}
