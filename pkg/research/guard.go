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
package research

import (
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned when a run for the same subject and workflow
// is in flight.
var ErrAlreadyRunning = errors.New("research already running")

// RunGuard allows one run per key at a time.
type RunGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

// NewRunGuard creates an empty guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{running: make(map[string]struct{})}
}

// Acquire marks key as running. The returned release is idempotent.
func (g *RunGuard) Acquire(key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[key]; busy {
		return nil, ErrAlreadyRunning
	}
	g.running[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, key)
			g.mu.Unlock()
		})
	}, nil
}

// Running reports whether key holds the guard.
func (g *RunGuard) Running(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.running[key]
	return busy
}

func runKey(subjectKey, workflowKey string) string {
	return subjectKey + "/" + workflowKey
}
