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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kadirpekel/dossier/pkg/admin"
	"github.com/kadirpekel/dossier/pkg/agent"
	"github.com/kadirpekel/dossier/pkg/cache"
	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/config"
	"github.com/kadirpekel/dossier/pkg/config/provider"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/model/anthropic"
	"github.com/kadirpekel/dossier/pkg/observability"
	"github.com/kadirpekel/dossier/pkg/research"
	"github.com/kadirpekel/dossier/pkg/store"
	"github.com/kadirpekel/dossier/pkg/tool/darttool"
	"github.com/kadirpekel/dossier/pkg/tool/fsctool"
	"github.com/kadirpekel/dossier/pkg/tool/nicebiztool"
	"github.com/kadirpekel/dossier/pkg/tool/searchtool"
	"github.com/kadirpekel/dossier/pkg/tool/webtool"
	"github.com/kadirpekel/dossier/pkg/toolloop"
	"github.com/kadirpekel/dossier/pkg/toolset"
)

// app holds the components built from the configuration. Commands open
// only what they use; close releases everything that was opened.
type app struct {
	cfg    *config.Config
	loader *config.Loader

	pool  *config.DBPool
	store store.Store
	cache cache.Cache
	obs   *observability.Manager
}

// loadConfig reads the configuration named by the CLI flags.
func loadConfig(ctx context.Context, cli *CLI, opts ...config.LoaderOption) (*config.Config, *config.Loader, error) {
	if cli.Config == "" {
		cfg, err := config.Default()
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("No config file; using defaults and environment")
		return cfg, nil, nil
	}

	typ, err := provider.ParseType(cli.ConfigType)
	if err != nil {
		return nil, nil, err
	}
	cfg, loader, err := config.LoadConfig(ctx, provider.ProviderConfig{
		Type:      typ,
		Path:      cli.Config,
		Endpoints: cli.ConfigEndpoints,
	}, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("Loaded configuration", "source", typ, "path", cli.Config)
	return cfg, loader, nil
}

func newApp(ctx context.Context, cli *CLI, opts ...config.LoaderOption) (*app, error) {
	cfg, loader, err := loadConfig(ctx, cli, opts...)
	if err != nil {
		return nil, err
	}
	if err := applyLoggerConfig(cfg.Logger); err != nil {
		return nil, err
	}
	return &app{cfg: cfg, loader: loader}, nil
}

// openStore connects the configured database, or an in-memory store when
// none is configured.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	if !a.cfg.Database.Enabled() {
		slog.Warn("No database configured; results are kept in memory for this process only")
		a.store = store.NewMemory()
		return a.store, nil
	}

	a.pool = config.NewDBPool()
	db, err := a.pool.Get(ctx, &a.cfg.Database)
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQL(ctx, db, a.cfg.Database.Dialect())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	slog.Debug("Store opened", "driver", a.cfg.Database.Driver)
	a.store = st
	return st, nil
}

func (a *app) openCache(ctx context.Context) (cache.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	c, err := cache.New(ctx, a.cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	a.cache = c
	return c, nil
}

func (a *app) openObservability(ctx context.Context) (*observability.Manager, error) {
	if a.obs != nil {
		return a.obs, nil
	}
	m := observability.NewManager(a.cfg.Observability)
	if err := m.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	a.obs = m
	return m, nil
}

// dispatcher wires the data providers behind the tool catalog. Sources
// without credentials are left out and report themselves unavailable.
func (a *app) dispatcher(ctx context.Context) (*toolset.Dispatcher, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	c, err := a.openCache(ctx)
	if err != nil {
		return nil, err
	}

	p := a.cfg.Providers
	providers := toolset.Providers{
		Web:       webtool.New(p.Web),
		Companies: st,
		BizInfo:   nicebiztool.New(p.NiceBiz, nil),
	}
	if p.Search.APIKey != "" {
		providers.Search = searchtool.New(p.Search, nil)
	}
	if p.FSC.ServiceKey != "" {
		providers.Registry = fsctool.New(p.FSC, nil)
	}
	if p.DART.APIKey != "" {
		providers.Disclosures = darttool.New(p.DART, nil)
	}

	return toolset.New(providers,
		toolset.WithCache(c),
		toolset.WithMaxResultTokens(a.cfg.Engine.MaxResultTokens),
	), nil
}

// pingRegNo is a registration number every registry source knows.
const pingRegNo = "1301110006246"

// inspector builds the diagnostics over the store and the keyed data
// providers. Providers without a key report ErrNotConfigured when pinged.
func (a *app) inspector(ctx context.Context) (*admin.Inspector, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	p := a.cfg.Providers
	dart := darttool.New(p.DART, nil)
	fsc := fsctool.New(p.FSC, nil)
	search := searchtool.New(p.Search, nil)
	return admin.New(st, admin.KeyStatuses(a.cfg), admin.WithChecks(
		admin.Check{Name: "DART", Ping: dart.Ping},
		admin.Check{Name: "FSC", Ping: func(ctx context.Context) error {
			_, err := fsc.Outline(ctx, pingRegNo)
			return err
		}},
		admin.Check{Name: "Serper", Ping: func(ctx context.Context) error {
			_, err := search.Search(ctx, "test", 1)
			return err
		}},
	)), nil
}

// checkCredentials fails when a required credential is missing and warns
// about optional integrations that are switched off.
func (a *app) checkCredentials() error {
	if missing := a.cfg.MissingCredentials(); len(missing) > 0 {
		return fmt.Errorf("missing required credentials: set %s", strings.Join(missing, ", "))
	}
	for _, name := range a.cfg.DisabledIntegrations() {
		slog.Warn("Integration disabled: credentials not set", "integration", name)
	}
	return nil
}

// service builds the research service over the full stack.
func (a *app) service(ctx context.Context, decider hitl.Decider) (*research.Service, error) {
	if err := a.checkCredentials(); err != nil {
		return nil, err
	}
	obs, err := a.openObservability(ctx)
	if err != nil {
		return nil, err
	}
	dispatcher, err := a.dispatcher(ctx)
	if err != nil {
		return nil, err
	}

	llm, err := anthropic.New(a.cfg.LLM.Anthropic())
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	engine := toolloop.New(llm, dispatcher,
		toolloop.WithParallelTools(a.cfg.Engine.IsParallel()),
		toolloop.WithMaxParallel(a.cfg.Engine.MaxParallel),
		toolloop.WithMetrics(obs.Metrics()),
		toolloop.WithTracer(obs.Tracer()),
	)
	runner := agent.NewRunner(engine,
		agent.WithMetrics(obs.Metrics()),
		agent.WithTracer(obs.Tracer()),
	)

	return research.NewService(runner, a.store, decider,
		research.WithTopN(a.cfg.HITL.TopN),
		research.WithDecisionTimeout(a.cfg.HITL.Timeout),
		research.WithMetrics(obs.Metrics()),
	), nil
}

// resolveSubject finds a company by registration number, corp code or,
// failing both, a unique name match.
func resolveSubject(ctx context.Context, st store.Companies, key string) (company.Company, error) {
	c, err := st.GetCompany(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		c, err = st.GetCompanyByCorpCode(ctx, key)
	}
	if err == nil {
		return *c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return company.Company{}, err
	}

	matches, err := st.SearchCompanies(ctx, key, 5)
	if err != nil {
		return company.Company{}, err
	}
	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1 && matches[0].Name == key:
		return matches[0], nil
	case len(matches) == 0:
		return company.Company{}, fmt.Errorf("no company matches %q; import the registry with `dossier companies import`", key)
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = fmt.Sprintf("%s (%s)", m.Name, m.CorpRegNo)
	}
	return company.Company{}, fmt.Errorf("%q is ambiguous: %s", key, strings.Join(names, ", "))
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("Failed to close cache", "error", err)
		}
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			slog.Warn("Failed to close database pool", "error", err)
		}
	}
	if a.obs != nil {
		if err := a.obs.Shutdown(ctx); err != nil {
			slog.Warn("Failed to shut down observability", "error", err)
		}
	}
	if a.loader != nil {
		_ = a.loader.Close()
	}
}
