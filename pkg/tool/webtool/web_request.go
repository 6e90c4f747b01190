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

// Package webtool fetches web pages and documents and reduces them to
// readable text for the model.
package webtool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kadirpekel/dossier/pkg/httpclient"
)

// Page is the readable form of a fetched URL.
type Page struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Text        string    `json:"text_content"`
	ContentType string    `json:"content_type"`
	Truncated   bool      `json:"truncated,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Config configures the fetcher.
type Config struct {
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	MaxRetries      int           `yaml:"max_retries,omitempty"`
	MaxResponseSize int64         `yaml:"max_response_size,omitempty"`
	MaxTextLength   int           `yaml:"max_text_length,omitempty"`
	MaxRedirects    int           `yaml:"max_redirects,omitempty"`
	UserAgent       string        `yaml:"user_agent,omitempty"`
	AllowedDomains  []string      `yaml:"allowed_domains,omitempty"`
	DeniedDomains   []string      `yaml:"denied_domains,omitempty"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.MaxResponseSize == 0 {
		c.MaxResponseSize = 10 << 20
	}
	if c.MaxTextLength == 0 {
		c.MaxTextLength = 100_000
	}
	if c.MaxRedirects == 0 {
		c.MaxRedirects = 10
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; Dossier/1.0)"
	}
}

const truncatedSuffix = "\n\n[... content truncated]"

// Fetcher downloads URLs and extracts their text.
type Fetcher struct {
	cfg  Config
	http *httpclient.Client
}

// New creates a fetcher.
func New(cfg Config) *Fetcher {
	cfg.SetDefaults()
	hc := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return validateDomain(&cfg, req.URL.Host)
		},
	}
	return &Fetcher{
		cfg: cfg,
		http: httpclient.New(
			httpclient.WithName("web"),
			httpclient.WithHTTPClient(hc),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithNetworkRetries(1),
			httpclient.WithBaseDelay(500*time.Millisecond),
		),
	}
}

// Fetch retrieves rawURL and returns its readable text. A nil page with a
// nil error means the URL produced nothing usable: an error status or an
// unsupported content type.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if err := validateDomain(&f.cfg, parsed.Host); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("Page fetch returned error status", "url", parsed.String(), "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxResponseSize {
		return nil, fmt.Errorf("response too large: exceeds %d bytes", f.cfg.MaxResponseSize)
	}

	contentType := resp.Header.Get("Content-Type")
	kind := detectKind(contentType, parsed.Path)
	if kind == kindUnsupported {
		slog.Warn("Unsupported content type", "url", parsed.String(), "content_type", contentType)
		return nil, nil
	}

	title, text, err := extract(ctx, kind, body, resp.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", kind, err)
	}

	page := &Page{
		URL:         parsed.String(),
		Title:       title,
		Text:        text,
		ContentType: contentType,
		FetchedAt:   time.Now().UTC(),
	}
	if runes := []rune(page.Text); len(runes) > f.cfg.MaxTextLength {
		page.Text = string(runes[:f.cfg.MaxTextLength]) + truncatedSuffix
		page.Truncated = true
	}

	slog.Debug("Page fetched", "url", page.URL, "kind", kind, "title", page.Title, "chars", len(page.Text))
	return page, nil
}

func validateDomain(cfg *Config, host string) error {
	if len(cfg.AllowedDomains) == 0 && len(cfg.DeniedDomains) == 0 {
		return nil
	}

	for _, denied := range cfg.DeniedDomains {
		if matchesDomain(host, denied) {
			return fmt.Errorf("domain not allowed: %s (matches deny rule: %s)", host, denied)
		}
	}

	if len(cfg.AllowedDomains) > 0 {
		for _, allowed := range cfg.AllowedDomains {
			if matchesDomain(host, allowed) {
				return nil
			}
		}
		return fmt.Errorf("domain not allowed: %s (not in allowed list)", host)
	}

	return nil
}

func matchesDomain(host, pattern string) bool {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if host == pattern {
		return true
	}
	// "*.example.com"
	if strings.HasPrefix(pattern, "*.") {
		return strings.HasSuffix(host, pattern[1:])
	}
	return false
}
