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

// Package cache memoizes provider lookups so that several workflows
// researching the same company do not repeat the same remote calls.
//
// Keys embed the subject identifier, which lets ClearScope drop every entry
// of one company.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache stores encoded lookup results.
type Cache interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value []byte) error

	// Clear drops every entry.
	Clear(ctx context.Context) error

	// ClearScope drops every entry whose key contains scope and returns how
	// many were dropped.
	ClearScope(ctx context.Context, scope string) (int, error)

	// Close releases backend resources.
	Close() error
}

// Config selects and configures the backend.
type Config struct {
	// Backend is "memory" (default) or "redis".
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr,omitempty" json:"addr,omitempty"`
	Password string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int           `yaml:"db,omitempty" json:"db,omitempty"`
	Prefix   string        `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Backend == BackendRedis {
		if c.Redis.Addr == "" {
			c.Redis.Addr = "localhost:6379"
		}
		if c.Redis.Prefix == "" {
			c.Redis.Prefix = "dossier:cache:"
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q (want %s or %s)", c.Backend, BackendMemory, BackendRedis)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("cache.redis.ttl must not be negative")
	}
	return nil
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Cache, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// flighted is implemented by backends that deduplicate concurrent loads.
type flighted interface {
	flight() *singleflight.Group
}

// Fetch returns the cached value of key or loads it with fn and caches the
// result. Load errors are returned and not cached; a nil result is cached
// like any other. Concurrent loads of one key on one cache share a single
// call to fn, which runs detached from any one caller's cancellation.
func Fetch[T any](ctx context.Context, c Cache, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if c == nil {
		return fn(ctx)
	}

	if data, ok, err := c.Get(ctx, key); err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			slog.Debug("Cache hit", "key", key)
			return v, nil
		}
		slog.Warn("Cache entry undecodable, reloading", "key", key)
	}

	slog.Debug("Cache miss", "key", key)
	load := func(ctx context.Context) (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode cache entry %s: %w", key, err)
		}
		if err := c.Set(ctx, key, data); err != nil {
			slog.Warn("Cache write failed", "key", key, "error", err)
		}
		return v, nil
	}

	var (
		v   any
		err error
	)
	if f, ok := c.(flighted); ok {
		detached := context.WithoutCancel(ctx)
		ch := f.flight().DoChan(key, func() (any, error) { return load(detached) })
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case res := <-ch:
			v, err = res.Val, res.Err
		}
	} else {
		v, err = load(ctx)
	}
	if err != nil {
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}

// Key joins parts into a cache key.
func Key(parts ...string) string {
	return strings.Join(parts, "_")
}
