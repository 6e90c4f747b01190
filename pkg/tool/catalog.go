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

package tool

import (
	"fmt"
	"sync"
)

// SearchArgs are the arguments of search_google.
type SearchArgs struct {
	Query string `json:"query" mapstructure:"query" jsonschema:"required,description=Search query"`
	Num   int    `json:"num,omitempty" mapstructure:"num" jsonschema:"description=Number of results to return,default=10"`
}

// WebpageArgs are the arguments of fetch_webpage.
type WebpageArgs struct {
	URL string `json:"url" mapstructure:"url" jsonschema:"required,description=URL to fetch"`
}

// CompanyInfoArgs are the arguments of get_company_info. One of the two
// identifiers is required.
type CompanyInfoArgs struct {
	JurirNo  string `json:"jurir_no,omitempty" mapstructure:"jurir_no" jsonschema:"description=13-digit corporate registration number"`
	CorpCode string `json:"corp_code,omitempty" mapstructure:"corp_code" jsonschema:"description=8-digit DART corporation code"`
}

// RegistryArgs are the arguments of the FSC tools.
type RegistryArgs struct {
	JurirNo string `json:"jurir_no" mapstructure:"jurir_no" jsonschema:"required,description=13-digit corporate registration number"`
}

// DisclosureArgs are the arguments of the DART tools.
type DisclosureArgs struct {
	CorpCode  string `json:"corp_code" mapstructure:"corp_code" jsonschema:"required,description=8-digit DART corporation code"`
	BsnsYear  string `json:"bsns_year" mapstructure:"bsns_year" jsonschema:"required,description=4-digit business year (e.g. 2024)"`
	ReprtCode string `json:"reprt_code,omitempty" mapstructure:"reprt_code" jsonschema:"description=Report code; 11011 is the annual report,default=11011"`
}

// BizArgs are the arguments of fetch_nicebiz_executives.
type BizArgs struct {
	BizrNo string `json:"bizr_no" mapstructure:"bizr_no" jsonschema:"required,description=10-digit business registration number"`
}

// DefaultReportCode selects the annual business report.
const DefaultReportCode = "11011"

type entry struct {
	description string
	label       string
	schema      func() map[string]any
}

var catalog = map[ID]entry{
	SearchGoogle: {
		description: "Run a Google search. Use it for news, company information and people.",
		label:       "Searching the web",
		schema:      schemaFor[SearchArgs],
	},
	FetchWebpage: {
		description: "Fetch a web page or document and return its readable text. Use it to read news articles, company homepages and community posts in detail.",
		label:       "Reading a web page",
		schema:      schemaFor[WebpageArgs],
	},
	GetCompanyInfo: {
		description: "Look up basic company information from the registry by jurir_no (corporate registration number) or corp_code (DART code).",
		label:       "Looking up the company registry",
		schema:      schemaFor[CompanyInfoArgs],
	},
	GetFSCOutline: {
		description: "Fetch the FSC corporate outline: founding date, main business, employee count and representative.",
		label:       "Fetching the corporate outline",
		schema:      schemaFor[RegistryArgs],
	},
	FetchDARTFinance: {
		description: "Fetch DART financial statements: revenue, operating profit, net income, assets and liabilities.",
		label:       "Fetching DART financial statements",
		schema:      schemaFor[DisclosureArgs],
	},
	FetchFSCSummary: {
		description: "Fetch the FSC summary financial statement: revenue, operating profit, net income, total assets and total liabilities.",
		label:       "Fetching summary financials",
		schema:      schemaFor[RegistryArgs],
	},
	FetchFSCBalanceSheet: {
		description: "Fetch the FSC balance sheet with detailed asset, liability and equity items.",
		label:       "Fetching the balance sheet",
		schema:      schemaFor[RegistryArgs],
	},
	FetchFSCIncomeStatement: {
		description: "Fetch the FSC income statement with detailed revenue, cost and profit items.",
		label:       "Fetching the income statement",
		schema:      schemaFor[RegistryArgs],
	},
	FetchDARTExecutives: {
		description: "Fetch the DART executive roster: names, positions, responsibilities and careers of registered officers.",
		label:       "Fetching the DART executive roster",
		schema:      schemaFor[DisclosureArgs],
	},
	FetchNiceBizExecutives: {
		description: "Fetch executive information from NiceBIZ.",
		label:       "Fetching NiceBIZ executives",
		schema:      schemaFor[BizArgs],
	},
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[ID]map[string]any{}
)

// Label returns the human-readable progress label of a known tool.
func Label(name string) (string, bool) {
	e, ok := catalog[ID(name)]
	if !ok {
		return "", false
	}
	return e.label, true
}

// Describe returns the model-facing definition of id.
func Describe(id ID) (Definition, error) {
	e, ok := catalog[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownTool, id)
	}

	schemaMu.Lock()
	params, ok := schemaCache[id]
	if !ok {
		params = e.schema()
		schemaCache[id] = params
	}
	schemaMu.Unlock()

	return Definition{Name: string(id), Description: e.description, Parameters: params}, nil
}

// Definitions returns the definitions of ids in order.
func Definitions(ids []ID) ([]Definition, error) {
	defs := make([]Definition, 0, len(ids))
	for _, id := range ids {
		def, err := Describe(id)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}
