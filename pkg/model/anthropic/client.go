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

// Package anthropic implements model.LLM over the Anthropic Messages API
// streaming endpoint.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/dossier/pkg/httpclient"
	"github.com/kadirpekel/dossier/pkg/model"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 8192
	defaultTimeout   = 300 * time.Second
)

// Config configures the Anthropic client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature *float64
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
}

// Client is a streaming Anthropic model.
type Client struct {
	httpClient  *httpclient.Client
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature *float64
}

var _ model.LLM = (*Client)(nil)

// New creates a new Anthropic client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}

	return &Client{
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
			httpclient.WithName("anthropic"),
		),
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       modelName,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns the model identifier.
func (c *Client) Name() string {
	return c.model
}

// Stream performs one streaming turn.
func (c *Client) Stream(ctx context.Context, req *model.Request) iter.Seq[model.StreamEvent] {
	return func(yield func(model.StreamEvent) bool) {
		decoder := NewDecoder()

		emit := func(events []model.StreamEvent) bool {
			for _, ev := range events {
				if !yield(ev) {
					return false
				}
			}
			return true
		}

		body, err := json.Marshal(c.buildRequest(req))
		if err != nil {
			emit(decoder.Close(fmt.Errorf("failed to marshal request: %w", err)))
			return
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			emit(decoder.Close(fmt.Errorf("failed to create request: %w", err)))
			return
		}
		c.setHeaders(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			emit(decoder.Close(fmt.Errorf("request failed: %w", err)))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			emit(decoder.Close(fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(msg))))
			return
		}

		reader := bufio.NewReader(resp.Body)
		for !decoder.Finished() {
			line, err := reader.ReadString('\n')
			if data, ok := dataLine(line); ok {
				if !emit(decoder.Decode([]byte(data))) {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				} else {
					err = fmt.Errorf("stream read error: %w", err)
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				emit(decoder.Close(err))
				return
			}
		}
	}
}

// dataLine extracts the payload of an SSE "data:" line.
func dataLine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	data := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
	if data == "" || data == "[DONE]" {
		return "", false
	}
	return data, true
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
}
