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

// Package admin reports the operational state of a deployment: the size of
// the company registry, which credentials are set and whether the data
// providers answer.
package admin

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/dossier/pkg/config"
	"github.com/kadirpekel/dossier/pkg/store"
)

const (
	// DefaultPingTimeout bounds each check.
	DefaultPingTimeout = 10 * time.Second

	maxMessage = 100
)

// KeyStatus tells whether one credential is set.
type KeyStatus struct {
	Env        string `json:"env"`
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
	Required   bool   `json:"required"`
}

// KeyStatuses reports the provider credentials of cfg. Required keys are
// those without which research cannot run.
func KeyStatuses(cfg *config.Config) []KeyStatus {
	p := cfg.Providers
	return []KeyStatus{
		{Env: config.EnvDARTKey, Name: "DART", Configured: p.DART.APIKey != "", Required: true},
		{Env: config.EnvAnthropicKey, Name: "Anthropic", Configured: cfg.LLM.APIKey != "", Required: true},
		{Env: config.EnvSerperKey, Name: "Serper", Configured: p.Search.APIKey != "", Required: true},
		{Env: config.EnvFSCKey, Name: "FSC", Configured: p.FSC.ServiceKey != ""},
		{Env: config.EnvNiceBizID, Name: "NiceBIZ client ID", Configured: p.NiceBiz.ClientID != ""},
		{Env: config.EnvNiceBizSecret, Name: "NiceBIZ client secret", Configured: p.NiceBiz.ClientSecret != ""},
	}
}

// Check verifies one dependency.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// PingResult is the outcome of one Check.
type PingResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Report is the state of a deployment.
type Report struct {
	Companies store.CompanyStats `json:"companies"`
	Pins      int                `json:"pins"`
	Keys      []KeyStatus        `json:"keys"`
	Missing   []string           `json:"missing_credentials"`
	Pings     []PingResult       `json:"pings,omitempty"`
}

// Inspector gathers Reports.
type Inspector struct {
	store   store.Store
	keys    []KeyStatus
	checks  []Check
	timeout time.Duration
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithChecks adds dependency checks.
func WithChecks(checks ...Check) Option {
	return func(i *Inspector) {
		i.checks = append(i.checks, checks...)
	}
}

// WithPingTimeout bounds each check.
func WithPingTimeout(d time.Duration) Option {
	return func(i *Inspector) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// New creates an Inspector over st. The store itself is always checked.
func New(st store.Store, keys []KeyStatus, opts ...Option) *Inspector {
	i := &Inspector{
		store:   st,
		keys:    keys,
		checks:  []Check{{Name: "Database", Ping: st.Ping}},
		timeout: DefaultPingTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Status returns the registry statistics and credential statuses. With
// ping set every check is run too.
func (i *Inspector) Status(ctx context.Context, ping bool) (*Report, error) {
	stats, err := i.store.CompanyStats(ctx)
	if err != nil {
		return nil, err
	}
	pins, err := i.store.ListPins(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{Companies: stats, Pins: len(pins), Keys: i.keys, Missing: []string{}}
	for _, k := range i.keys {
		if k.Required && !k.Configured {
			r.Missing = append(r.Missing, k.Env)
		}
	}
	if ping {
		r.Pings = i.Ping(ctx)
	}
	return r, nil
}

// Ping runs every check concurrently. Results keep the order of the checks.
func (i *Inspector) Ping(ctx context.Context) []PingResult {
	results := make([]PingResult, len(i.checks))
	var g errgroup.Group
	for n, c := range i.checks {
		g.Go(func() error {
			results[n] = i.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (i *Inspector) run(ctx context.Context, c Check) PingResult {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	err := c.Ping(ctx)
	res := PingResult{Name: c.Name, OK: err == nil, Message: "ok", ElapsedMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Message = truncate(err.Error(), maxMessage)
		slog.Warn("Ping failed", "check", c.Name, "error", err)
		return res
	}
	slog.Debug("Ping succeeded", "check", c.Name, "elapsed_ms", res.ElapsedMS)
	return res
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
