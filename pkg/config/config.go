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

// Package config loads the dossier configuration.
//
// Configuration is YAML (JSON is accepted) decoded into Config. String values
// may reference the environment with ${VAR} or ${VAR:-default}. Every section
// has SetDefaults and Validate; credentials left empty fall back to the
// conventional environment variables so an empty file is a usable config.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/kadirpekel/dossier/pkg/cache"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/model/anthropic"
	"github.com/kadirpekel/dossier/pkg/observability"
	"github.com/kadirpekel/dossier/pkg/tool/darttool"
	"github.com/kadirpekel/dossier/pkg/tool/fsctool"
	"github.com/kadirpekel/dossier/pkg/tool/nicebiztool"
	"github.com/kadirpekel/dossier/pkg/tool/searchtool"
	"github.com/kadirpekel/dossier/pkg/tool/webtool"
)

// Environment variables consulted when a credential is not configured.
const (
	EnvAnthropicKey   = "ANTHROPIC_API_KEY"
	EnvSerperKey      = "SERPER_API_KEY"
	EnvDARTKey        = "DART_API_KEY"
	EnvFSCKey         = "FSC_API_KEY"
	EnvNiceBizID      = "NICEBIZ_CLIENT_ID"
	EnvNiceBizSecret  = "NICEBIZ_CLIENT_SECRET"
	EnvDatabaseDriver = "DOSSIER_DB_DRIVER"
	EnvDatabaseName   = "DOSSIER_DB"
)

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig            `yaml:"llm,omitempty" json:"llm,omitempty"`
	Providers     ProvidersConfig      `yaml:"providers,omitempty" json:"providers,omitempty"`
	Database      DatabaseConfig       `yaml:"database,omitempty" json:"database,omitempty"`
	Cache         cache.Config         `yaml:"cache,omitempty" json:"cache,omitempty"`
	HITL          HITLConfig           `yaml:"hitl,omitempty" json:"hitl,omitempty"`
	Engine        EngineConfig         `yaml:"engine,omitempty" json:"engine,omitempty"`
	Server        ServerConfig         `yaml:"server,omitempty" json:"server,omitempty"`
	Auth          AuthConfig           `yaml:"auth,omitempty" json:"auth,omitempty"`
	RateLimit     RateLimitConfig      `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Logger        LoggerConfig         `yaml:"logger,omitempty" json:"logger,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Providers.SetDefaults()
	if !c.Database.Enabled() {
		c.Database.Driver = os.Getenv(EnvDatabaseDriver)
		if c.Database.Driver != "" && c.Database.Database == "" {
			c.Database.Database = os.Getenv(EnvDatabaseName)
		}
	}
	c.Database.SetDefaults()
	c.Cache.SetDefaults()
	c.HITL.SetDefaults()
	c.Engine.SetDefaults()
	c.Server.SetDefaults()
	c.Auth.SetDefaults()
	c.RateLimit.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"llm", c.LLM.Validate},
		{"database", c.Database.Validate},
		{"cache", c.Cache.Validate},
		{"hitl", c.HITL.Validate},
		{"engine", c.Engine.Validate},
		{"server", c.Server.Validate},
		{"auth", c.Auth.Validate},
		{"rate_limit", c.RateLimit.Validate},
		{"logger", c.Logger.Validate},
		{"observability", c.Observability.Validate},
	}
	var errs []error
	for _, check := range checks {
		if err := check.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", check.name, err))
		}
	}
	return errors.Join(errs...)
}

// MissingCredentials lists the environment variables of required
// credentials that are not set. Research cannot run while any is missing.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, EnvAnthropicKey)
	}
	if c.Providers.Search.APIKey == "" {
		missing = append(missing, EnvSerperKey)
	}
	if c.Providers.DART.APIKey == "" {
		missing = append(missing, EnvDARTKey)
	}
	return missing
}

// DisabledIntegrations lists the optional integrations without credentials.
func (c *Config) DisabledIntegrations() []string {
	var disabled []string
	if c.Providers.FSC.ServiceKey == "" {
		disabled = append(disabled, "fsc")
	}
	if !c.Providers.NiceBiz.Configured() {
		disabled = append(disabled, "nicebiz")
	}
	return disabled
}

// LLMConfig configures the Anthropic model.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Model       string        `yaml:"model,omitempty" json:"model,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"minimum=1"`
	Temperature *float64      `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"minimum=0,maximum=1"`
	BaseURL     string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries  int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// SetDefaults fills the API key from the environment.
func (c *LLMConfig) SetDefaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv(EnvAnthropicKey)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the ranges.
func (c *LLMConfig) Validate() error {
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 1) {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}

// Anthropic converts the section into the client config.
func (c *LLMConfig) Anthropic() anthropic.Config {
	return anthropic.Config{
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		BaseURL:     c.BaseURL,
		Timeout:     c.Timeout,
		MaxRetries:  c.MaxRetries,
	}
}

// ProvidersConfig configures the data sources behind the tools.
type ProvidersConfig struct {
	Search  searchtool.Config  `yaml:"search,omitempty" json:"search,omitempty"`
	Web     webtool.Config     `yaml:"web,omitempty" json:"web,omitempty"`
	DART    darttool.Config    `yaml:"dart,omitempty" json:"dart,omitempty"`
	FSC     fsctool.Config     `yaml:"fsc,omitempty" json:"fsc,omitempty"`
	NiceBiz nicebiztool.Config `yaml:"nicebiz,omitempty" json:"nicebiz,omitempty"`
}

// SetDefaults fills credentials from the environment and applies the
// provider defaults.
func (c *ProvidersConfig) SetDefaults() {
	envDefault(&c.Search.APIKey, EnvSerperKey)
	envDefault(&c.DART.APIKey, EnvDARTKey)
	envDefault(&c.FSC.ServiceKey, EnvFSCKey)
	envDefault(&c.NiceBiz.ClientID, EnvNiceBizID)
	envDefault(&c.NiceBiz.ClientSecret, EnvNiceBizSecret)

	c.Search.SetDefaults()
	c.Web.SetDefaults()
	c.DART.SetDefaults()
	c.FSC.SetDefaults()
	c.NiceBiz.SetDefaults()
}

func envDefault(field *string, env string) {
	if *field == "" {
		*field = os.Getenv(env)
	}
}

// HITLConfig configures human decisions.
type HITLConfig struct {
	// Timeout bounds every wait for a decision. Default: 5m.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// TopN is the size of the "top" curation choice. Default: 3.
	TopN int `yaml:"top_n,omitempty" json:"top_n,omitempty" jsonschema:"minimum=1"`
}

func (c *HITLConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = hitl.DefaultTimeout
	}
	if c.TopN == 0 {
		c.TopN = 3
	}
}

func (c *HITLConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	if c.TopN < 0 {
		return fmt.Errorf("top_n must be non-negative")
	}
	return nil
}

// EngineConfig configures the tool loop.
type EngineConfig struct {
	// ParallelTools runs the tool calls of one turn concurrently. Default: true.
	ParallelTools *bool `yaml:"parallel_tools,omitempty" json:"parallel_tools,omitempty"`

	// MaxParallel caps concurrent tool calls. Default: 8.
	MaxParallel int `yaml:"max_parallel,omitempty" json:"max_parallel,omitempty" jsonschema:"minimum=1"`

	// MaxResultTokens truncates each tool result. Zero disables truncation.
	MaxResultTokens int `yaml:"max_result_tokens,omitempty" json:"max_result_tokens,omitempty" jsonschema:"minimum=0"`
}

func (c *EngineConfig) SetDefaults() {
	if c.ParallelTools == nil {
		parallel := true
		c.ParallelTools = &parallel
	}
	if c.MaxParallel == 0 {
		c.MaxParallel = 8
	}
}

func (c *EngineConfig) Validate() error {
	if c.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be non-negative")
	}
	if c.MaxResultTokens < 0 {
		return fmt.Errorf("max_result_tokens must be non-negative")
	}
	return nil
}

// IsParallel reports whether tool calls run concurrently.
func (c *EngineConfig) IsParallel() bool {
	return c.ParallelTools == nil || *c.ParallelTools
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"default=0.0.0.0"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"minimum=1,maximum=65535,default=8080"`

	// ReadTimeout bounds reading a request. Research streams are not bounded
	// by a write timeout.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// ShutdownTimeout bounds the graceful shutdown. Default: 30s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`

	// CORSOrigins lists allowed browser origins. Empty disables CORS headers.
	CORSOrigins []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Address returns host:port.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
