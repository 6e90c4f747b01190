// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package searchtool runs Google searches through the Serper API.
//
// Results are the organic hits only, localized for Korea by default:
//   - gl=kr / hl=ko unless configured otherwise
//   - num defaults to 10 and is capped at MaxResults
package searchtool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/dossier/pkg/httpclient"
)

const (
	// DefaultEndpoint is the Serper search endpoint.
	DefaultEndpoint = "https://google.serper.dev/search"

	DefaultResults = 10
	MaxResults     = 50
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("search is not configured: missing Serper API key")

// Config configures the search client.
type Config struct {
	APIKey   string        `yaml:"api_key,omitempty"`
	Endpoint string        `yaml:"endpoint,omitempty"`
	Country  string        `yaml:"country,omitempty"`
	Language string        `yaml:"language,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Country == "" {
		c.Country = "kr"
	}
	if c.Language == "" {
		c.Language = "ko"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Result is one organic search hit.
type Result struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	Date     string `json:"date,omitempty"`
	Position int    `json:"position,omitempty"`
}

type request struct {
	Query    string `json:"q"`
	Country  string `json:"gl"`
	Language string `json:"hl"`
	Num      int    `json:"num"`
}

type response struct {
	Organic []Result `json:"organic"`
}

// Client queries Serper.
type Client struct {
	cfg  Config
	http *httpclient.Client
}

// New creates a search client. A nil hc gets a client with one network retry.
func New(cfg Config, hc *httpclient.Client) *Client {
	cfg.SetDefaults()
	if hc == nil {
		hc = httpclient.New(
			httpclient.WithName("serper"),
			httpclient.WithTimeout(cfg.Timeout),
			httpclient.WithNetworkRetries(1),
		)
	}
	return &Client{cfg: cfg, http: hc}
}

// Search returns the organic results for query. An empty list means no hits.
func (c *Client) Search(ctx context.Context, query string, num int) ([]Result, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	switch {
	case num <= 0:
		num = DefaultResults
	case num > MaxResults:
		num = MaxResults
	}

	header := http.Header{}
	header.Set("X-API-KEY", c.cfg.APIKey)

	var resp response
	err := c.http.PostJSON(ctx, c.cfg.Endpoint, header, request{
		Query:    query,
		Country:  c.cfg.Country,
		Language: c.cfg.Language,
		Num:      num,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	slog.Debug("Search completed", "query", query, "results", len(resp.Organic))
	if resp.Organic == nil {
		return []Result{}, nil
	}
	return resp.Organic, nil
}
