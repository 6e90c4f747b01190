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

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store keeps the window counters.
//
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// Increment adds one to the counter of key and returns the new count.
	// A new counter expires after ttl.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}

// Ensure interface compliance at compile time.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

type counter struct {
	count   int64
	expires time.Time
}

// MemoryStore is an in-memory implementation of Store.
// It is suitable for development, testing, and single-instance deployments.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]*counter
	now      func() time.Time
	lastScan time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*counter),
		now:  time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	c, ok := s.data[key]
	if !ok || !now.Before(c.expires) {
		c = &counter{expires: now.Add(ttl)}
		s.data[key] = c
	}
	c.count++
	return c.count, nil
}

// sweep drops expired counters, at most once a minute.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastScan) < time.Minute {
		return
	}
	s.lastScan = now
	for key, c := range s.data {
		if !now.Before(c.expires) {
			delete(s.data, key)
		}
	}
}

// Close closes the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*counter)
	return nil
}

// Size returns the number of live counters.
func (s *MemoryStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
