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

// Package toolset binds the tool catalog to its data providers.
//
// The Dispatcher is the tool.Executor handed to the tool loop. Every
// provider lookup is read through the cache under a key that embeds the
// subject identifier, so one company's entries can be dropped with
// cache.ClearScope.
package toolset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kadirpekel/dossier/pkg/cache"
	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/store"
	"github.com/kadirpekel/dossier/pkg/tool"
	"github.com/kadirpekel/dossier/pkg/tool/darttool"
	"github.com/kadirpekel/dossier/pkg/tool/fsctool"
	"github.com/kadirpekel/dossier/pkg/tool/searchtool"
	"github.com/kadirpekel/dossier/pkg/tool/webtool"
)

// Provider contracts. The concrete clients live under pkg/tool.
type (
	Searcher interface {
		Search(ctx context.Context, query string, num int) ([]searchtool.Result, error)
	}

	PageFetcher interface {
		Fetch(ctx context.Context, url string) (*webtool.Page, error)
	}

	Registry interface {
		Outline(ctx context.Context, corpRegNo string) (*fsctool.Outline, error)
		Summary(ctx context.Context, corpRegNo string) ([]fsctool.Summary, error)
		BalanceSheet(ctx context.Context, corpRegNo string) ([]fsctool.Account, error)
		IncomeStatement(ctx context.Context, corpRegNo string) ([]fsctool.Account, error)
	}

	Disclosures interface {
		Finance(ctx context.Context, corpCode, year, reportCode string) ([]darttool.FinanceItem, error)
		Executives(ctx context.Context, corpCode, year, reportCode string) ([]darttool.Executive, error)
	}

	BizInfo interface {
		Executives(ctx context.Context, bizRegNo string) ([]map[string]any, error)
	}
)

// Providers groups the data sources. A nil provider makes its tools report
// that they are unavailable.
type Providers struct {
	Search      Searcher
	Web         PageFetcher
	Companies   store.Companies
	Registry    Registry
	Disclosures Disclosures
	BizInfo     BizInfo
}

// Dispatcher executes catalog tools.
type Dispatcher struct {
	p         Providers
	cache     cache.Cache
	truncator *tool.Truncator
}

var _ tool.Executor = (*Dispatcher)(nil)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCache reads provider results through c.
func WithCache(c cache.Cache) Option {
	return func(d *Dispatcher) {
		d.cache = c
	}
}

// WithMaxResultTokens caps each rendered result to n tokens.
func WithMaxResultTokens(n int) Option {
	return func(d *Dispatcher) {
		d.truncator = tool.NewTruncator(n)
	}
}

// New creates a Dispatcher.
func New(p Providers, opts ...Option) *Dispatcher {
	d := &Dispatcher{p: p}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ErrUnavailable is returned when the provider behind a tool is missing.
var ErrUnavailable = errors.New("tool is not available")

// Execute runs the named tool and renders its result.
func (d *Dispatcher) Execute(ctx context.Context, name string, input map[string]any) (string, error) {
	id, ok := tool.ParseID(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", tool.ErrUnknownTool, name)
	}

	result, err := d.dispatch(ctx, id, input)
	if err != nil {
		return "", err
	}
	text, err := tool.Render(result)
	if err != nil {
		return "", err
	}
	return d.truncator.Truncate(text), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, id tool.ID, input map[string]any) (any, error) {
	switch id {
	case tool.SearchGoogle:
		return d.search(ctx, input)
	case tool.FetchWebpage:
		return d.fetchPage(ctx, input)
	case tool.GetCompanyInfo:
		return d.companyInfo(ctx, input)
	case tool.GetFSCOutline:
		return registryCall(ctx, d, d.p.Registry, id, input, "outline", Registry.Outline)
	case tool.FetchFSCSummary:
		return registryCall(ctx, d, d.p.Registry, id, input, "summary", Registry.Summary)
	case tool.FetchFSCBalanceSheet:
		return registryCall(ctx, d, d.p.Registry, id, input, "bs", Registry.BalanceSheet)
	case tool.FetchFSCIncomeStatement:
		return registryCall(ctx, d, d.p.Registry, id, input, "is", Registry.IncomeStatement)
	case tool.FetchDARTFinance:
		return disclosureCall(ctx, d, id, input, "finance", Disclosures.Finance)
	case tool.FetchDARTExecutives:
		return disclosureCall(ctx, d, id, input, "executives", Disclosures.Executives)
	case tool.FetchNiceBizExecutives:
		return d.bizExecutives(ctx, input)
	default:
		return nil, fmt.Errorf("%w: %s", tool.ErrUnknownTool, id)
	}
}

func unavailable(id tool.ID) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, id)
}

func (d *Dispatcher) search(ctx context.Context, input map[string]any) (any, error) {
	if d.p.Search == nil {
		return nil, unavailable(tool.SearchGoogle)
	}
	args, err := tool.Decode[tool.SearchArgs](input)
	if err != nil {
		return nil, err
	}
	key := cache.Key("serper", args.Query, strconv.Itoa(args.Num))
	return cache.Fetch(ctx, d.cache, key, func(ctx context.Context) ([]searchtool.Result, error) {
		return d.p.Search.Search(ctx, args.Query, args.Num)
	})
}

func (d *Dispatcher) fetchPage(ctx context.Context, input map[string]any) (any, error) {
	if d.p.Web == nil {
		return nil, unavailable(tool.FetchWebpage)
	}
	args, err := tool.Decode[tool.WebpageArgs](input)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, d.cache, cache.Key("web", args.URL), func(ctx context.Context) (*webtool.Page, error) {
		return d.p.Web.Fetch(ctx, args.URL)
	})
}

func (d *Dispatcher) companyInfo(ctx context.Context, input map[string]any) (any, error) {
	if d.p.Companies == nil {
		return nil, unavailable(tool.GetCompanyInfo)
	}
	args, err := tool.Decode[tool.CompanyInfoArgs](input)
	if err != nil {
		return nil, err
	}

	var c *company.Company
	switch {
	case args.JurirNo != "":
		c, err = d.p.Companies.GetCompany(ctx, args.JurirNo)
	case args.CorpCode != "":
		c, err = d.p.Companies.GetCompanyByCorpCode(ctx, args.CorpCode)
	default:
		return nil, errors.New("either jurir_no or corp_code is required")
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func registryCall[T any](
	ctx context.Context,
	d *Dispatcher,
	r Registry,
	id tool.ID,
	input map[string]any,
	kind string,
	call func(Registry, context.Context, string) (T, error),
) (any, error) {
	if r == nil {
		return nil, unavailable(id)
	}
	args, err := tool.Decode[tool.RegistryArgs](input)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, d.cache, cache.Key("fsc", kind, args.JurirNo), func(ctx context.Context) (T, error) {
		return call(r, ctx, args.JurirNo)
	})
}

func disclosureCall[T any](
	ctx context.Context,
	d *Dispatcher,
	id tool.ID,
	input map[string]any,
	kind string,
	call func(Disclosures, context.Context, string, string, string) ([]T, error),
) (any, error) {
	if d.p.Disclosures == nil {
		return nil, unavailable(id)
	}
	args, err := tool.Decode[tool.DisclosureArgs](input)
	if err != nil {
		return nil, err
	}
	if args.ReprtCode == "" {
		args.ReprtCode = tool.DefaultReportCode
	}

	key := cache.Key("dart", kind, args.CorpCode, args.BsnsYear, args.ReprtCode)
	return cache.Fetch(ctx, d.cache, key, func(ctx context.Context) ([]T, error) {
		items, err := call(d.p.Disclosures, ctx, args.CorpCode, args.BsnsYear, args.ReprtCode)
		if errors.Is(err, darttool.ErrNoData) {
			return nil, nil
		}
		return items, err
	})
}

func (d *Dispatcher) bizExecutives(ctx context.Context, input map[string]any) (any, error) {
	if d.p.BizInfo == nil {
		return nil, unavailable(tool.FetchNiceBizExecutives)
	}
	args, err := tool.Decode[tool.BizArgs](input)
	if err != nil {
		return nil, err
	}
	return cache.Fetch(ctx, d.cache, cache.Key("nicebiz", "executives", args.BizrNo), func(ctx context.Context) ([]map[string]any, error) {
		return d.p.BizInfo.Executives(ctx, args.BizrNo)
	})
}

// ClearSubject drops every cached lookup of c: registry entries keyed by the
// registration number, disclosure entries keyed by the corp code and
// business-info entries keyed by the business number.
func ClearSubject(ctx context.Context, cc cache.Cache, c company.Company) (int, error) {
	total := 0
	for _, scope := range []string{c.CorpRegNo, c.CorpCode, c.BizRegNo} {
		if scope == "" {
			continue
		}
		n, err := cc.ClearScope(ctx, scope)
		if err != nil {
			return total, err
		}
		total += n
	}
	slog.Info("Subject cache cleared", "subject", c.Key(), "entries", total)
	return total, nil
}
