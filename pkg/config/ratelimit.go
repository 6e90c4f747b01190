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

package config

import (
	"fmt"

	"github.com/kadirpekel/dossier/pkg/cache"
)

// RateLimitConfig caps how many research and chat runs one caller may
// start. Callers are identified by their token subject, or by client
// address when anonymous.
//
// Example:
//
//	rate_limit:
//	  enabled: true
//	  limits:
//	    - window: minute
//	      limit: 5
//	    - window: day
//	      limit: 100
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Backend is "memory" (default) or "redis". Redis shares the counters
	// between server instances.
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`

	Redis cache.RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`

	// Limits are fixed-window run quotas. Default: 10 per minute and 200
	// per day.
	Limits []RateLimitRule `yaml:"limits,omitempty" json:"limits,omitempty"`
}

// RateLimitRule is one quota.
type RateLimitRule struct {
	// Window is "minute", "hour", "day" or "week".
	Window string `yaml:"window" json:"window" jsonschema:"enum=minute,enum=hour,enum=day,enum=week"`

	// Limit is the number of runs allowed per window.
	Limit int64 `yaml:"limit" json:"limit" jsonschema:"minimum=1"`
}

// SetDefaults sets default values for RateLimitConfig.
func (c *RateLimitConfig) SetDefaults() {
	if !c.Enabled {
		return
	}
	if len(c.Limits) == 0 {
		c.Limits = []RateLimitRule{
			{Window: "minute", Limit: 10},
			{Window: "day", Limit: 200},
		}
	}
	if c.Backend == "" {
		c.Backend = cache.BackendMemory
	}
	if c.Backend == cache.BackendRedis {
		if c.Redis.Addr == "" {
			c.Redis.Addr = "localhost:6379"
		}
		if c.Redis.Prefix == "" {
			c.Redis.Prefix = "dossier:ratelimit:"
		}
	}
}

// Validate validates the RateLimitConfig.
func (c *RateLimitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case cache.BackendMemory, cache.BackendRedis:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, cache.BackendMemory, cache.BackendRedis)
	}
	for i, rule := range c.Limits {
		switch rule.Window {
		case "minute", "hour", "day", "week":
		default:
			return fmt.Errorf("limits[%d]: unknown window %q", i, rule.Window)
		}
		if rule.Limit <= 0 {
			return fmt.Errorf("limits[%d]: limit must be positive", i)
		}
	}
	return nil
}
