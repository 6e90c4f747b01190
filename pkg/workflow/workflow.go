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

// Package workflow holds the static table of research workflows: their
// progress steps, report sections, tool sets and system prompts.
package workflow

import (
	"embed"
	"fmt"

	"github.com/kadirpekel/dossier/pkg/tool"
)

// ID identifies a workflow.
type ID string

const (
	General    ID = "general"
	Finance    ID = "finance"
	Executives ID = "executives"
)

// Section keys with special handling.
const (
	SectionExecutiveList = "executive_list"
	SectionCurationPanel = "curation_panel"
	SectionFull          = "full"

	// ProfilePrefix prefixes the dynamic executive profile sections.
	ProfilePrefix = "profile_"
)

// SectionSpec is one expected section of a report.
type SectionSpec struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

// Definition describes a workflow.
type Definition struct {
	ID       ID
	Label    string
	Steps    []string
	Sections []SectionSpec
	Tools    []tool.ID
	prompt   string
}

//go:embed prompts/*.md
var prompts embed.FS

var definitions = map[ID]*Definition{
	General: {
		ID:    General,
		Label: "general company analysis",
		Steps: []string{"Registry lookup", "Web search", "Content collection", "Analysis", "Report writing"},
		Sections: []SectionSpec{
			{Key: "company_overview", Title: "Company Overview"},
			{Key: "ax_moves", Title: "Recent AX Moves"},
			{Key: "biz_moves", Title: "Recent Business Moves"},
			{Key: "ax_insights", Title: "AX Sales Insights"},
			{Key: "smalltalk", Title: "Smalltalk Topics"},
		},
		Tools: []tool.ID{tool.SearchGoogle, tool.FetchWebpage, tool.GetCompanyInfo, tool.GetFSCOutline},
	},
	Finance: {
		ID:    Finance,
		Label: "financial analysis",
		Steps: []string{"Financial data collection", "Industry context", "Analysis", "Report writing"},
		Sections: []SectionSpec{
			{Key: "financial_summary", Title: "Three-Year Financial Summary"},
			{Key: "financial_health", Title: "Financial Health"},
			{Key: "key_changes", Title: "Key Changes"},
			{Key: "ax_investment", Title: "AX Investment Capacity"},
			{Key: "sales_considerations", Title: "Sales Considerations"},
		},
		Tools: []tool.ID{
			tool.FetchDARTFinance, tool.FetchFSCSummary, tool.FetchFSCBalanceSheet,
			tool.FetchFSCIncomeStatement, tool.SearchGoogle, tool.FetchWebpage,
		},
	},
	Executives: {
		ID:    Executives,
		Label: "executive analysis",
		Steps: []string{"Executive list", "Awaiting curation", "Surface research", "Deep research", "Report writing"},
		Sections: []SectionSpec{
			{Key: SectionExecutiveList, Title: "Executive List"},
			{Key: SectionCurationPanel, Title: "Curation Panel"},
		},
		Tools: []tool.ID{
			tool.FetchDARTExecutives, tool.FetchNiceBizExecutives, tool.SearchGoogle,
			tool.FetchWebpage, tool.GetCompanyInfo,
		},
	},
}

func init() {
	for id, def := range definitions {
		data, err := prompts.ReadFile(fmt.Sprintf("prompts/system_%s.md", id))
		if err != nil {
			panic(fmt.Sprintf("workflow %s: missing system prompt: %v", id, err))
		}
		def.prompt = string(data)
	}
}

// All returns the workflow IDs in display order.
func All() []ID {
	return []ID{General, Finance, Executives}
}

// Lookup returns the definition of id.
func Lookup(id ID) (*Definition, bool) {
	def, ok := definitions[id]
	return def, ok
}

// Parse converts a string into a known workflow ID.
func Parse(s string) (ID, error) {
	id := ID(s)
	if _, ok := definitions[id]; !ok {
		return "", fmt.Errorf("unknown workflow %q (want one of %v)", s, All())
	}
	return id, nil
}

// SystemPrompt returns the embedded system prompt.
func (d *Definition) SystemPrompt() string {
	return d.prompt
}

// ToolDefinitions returns the tool schemas offered to the model.
func (d *Definition) ToolDefinitions() ([]tool.Definition, error) {
	return tool.Definitions(d.Tools)
}

// Title returns the schema title of key, falling back to the key itself.
func (d *Definition) Title(key string) string {
	for _, s := range d.Sections {
		if s.Key == key {
			return s.Title
		}
	}
	return key
}

// StepLabel returns the label of step i; out-of-range steps read "Completed".
func (d *Definition) StepLabel(i int) string {
	if i >= 0 && i < len(d.Steps) {
		return d.Steps[i]
	}
	return "Completed"
}
