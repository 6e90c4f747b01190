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

// Package nicebiztool reads executive and company data from the NiceBIZ API.
// The integration is optional: without credentials every lookup reports no
// data instead of failing.
package nicebiztool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/kadirpekel/dossier/pkg/httpclient"
)

// DefaultBaseURL is the NiceBIZ API root.
const DefaultBaseURL = "https://api.nicebizinfo.com"

// Config configures the NiceBIZ client.
type Config struct {
	ClientID     string        `yaml:"client_id,omitempty"`
	ClientSecret string        `yaml:"client_secret,omitempty"`
	BaseURL      string        `yaml:"base_url,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
}

// Configured reports whether both credentials are set.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TokenSession holds the OAuth2 client-credentials token. Concurrent callers
// share one token and one refresh.
type TokenSession struct {
	cfg  Config
	http *httpclient.Client

	mu    sync.Mutex
	token string
}

// NewTokenSession creates a session for cfg.
func NewTokenSession(cfg Config, hc *httpclient.Client) *TokenSession {
	return &TokenSession{cfg: cfg, http: hc}
}

// Token returns the cached token, requesting one when none is held.
func (s *TokenSession) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := s.http.PostForm(ctx, s.cfg.BaseURL+"/oauth/token", nil, form, &resp); err != nil {
		return "", fmt.Errorf("nicebiz token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", errors.New("nicebiz token: response has no access_token")
	}
	slog.Debug("NiceBIZ token issued", "expires_in", resp.ExpiresIn)
	s.token = resp.AccessToken
	return s.token, nil
}

// Invalidate drops the token if it is still the one that was rejected.
func (s *TokenSession) Invalidate(rejected string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == rejected {
		s.token = ""
	}
}

// Client calls the NiceBIZ API.
type Client struct {
	cfg     Config
	http    *httpclient.Client
	session *TokenSession
}

// New creates a NiceBIZ client.
func New(cfg Config, hc *httpclient.Client) *Client {
	cfg.SetDefaults()
	if hc == nil {
		hc = httpclient.New(
			httpclient.WithName("nicebiz"),
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithNetworkRetries(1),
		)
	}
	return &Client{cfg: cfg, http: hc, session: NewTokenSession(cfg, hc)}
}

// Executives returns the executives of the business registration number,
// or nil when the integration is not configured.
func (c *Client) Executives(ctx context.Context, bizRegNo string) ([]map[string]any, error) {
	if !c.cfg.Configured() {
		slog.Warn("NiceBIZ credentials not set; skipping executive lookup")
		return nil, nil
	}

	var resp struct {
		Data json.RawMessage `json:"data"`
		List json.RawMessage `json:"list"`
	}
	if err := c.get(ctx, "/api/v1/executives", bizRegNo, &resp); err != nil {
		return nil, err
	}

	raw := resp.Data
	if len(raw) == 0 {
		raw = resp.List
	}
	execs := []map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &execs); err != nil {
			slog.Warn("Unexpected NiceBIZ executive payload", "error", err)
			return []map[string]any{}, nil
		}
	}
	return execs, nil
}

// Company returns the company record, or nil when not configured.
func (c *Client) Company(ctx context.Context, bizRegNo string) (map[string]any, error) {
	if !c.cfg.Configured() {
		return nil, nil
	}

	var resp map[string]any
	if err := c.get(ctx, "/api/v1/company", bizRegNo, &resp); err != nil {
		return nil, err
	}
	if data, ok := resp["data"].(map[string]any); ok {
		return data, nil
	}
	return resp, nil
}

// get performs an authenticated GET, refreshing the token once on 401.
func (c *Client) get(ctx context.Context, path, bizRegNo string, out any) error {
	q := url.Values{}
	q.Set("bizr_no", bizRegNo)

	for attempt := 0; ; attempt++ {
		token, err := c.session.Token(ctx)
		if err != nil {
			return err
		}
		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)

		err = c.http.GetJSON(ctx, c.cfg.BaseURL+path, q, header, out)
		if err == nil {
			return nil
		}
		if attempt == 0 && httpclient.HasStatus(err, http.StatusUnauthorized) {
			slog.Debug("NiceBIZ token rejected; refreshing")
			c.session.Invalidate(token)
			continue
		}
		return fmt.Errorf("nicebiz %s: %w", path, err)
	}
}
