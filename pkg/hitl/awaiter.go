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

package hitl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// pending is a prompt waiting for its answer.
type pending struct {
	prompt  Prompt
	created time.Time
	answer  chan string
}

// Awaiter parks prompts until an answer is delivered out of band, for
// example by an HTTP handler.
type Awaiter struct {
	mu      sync.Mutex
	waiting map[string]*pending
}

var _ Decider = (*Awaiter)(nil)

// NewAwaiter creates an Awaiter.
func NewAwaiter() *Awaiter {
	return &Awaiter{waiting: make(map[string]*pending)}
}

// Decide implements Decider.
func (a *Awaiter) Decide(ctx context.Context, p Prompt) (Decision, error) {
	value, err := a.Wait(ctx, p)
	switch {
	case errors.Is(err, ErrTimeout):
		return Decision{TimedOut: true}, nil
	case err != nil:
		return Decision{}, err
	}
	return Decision{Value: value}, nil
}

// Wait parks p and blocks until Provide answers it, its timeout elapses
// (ErrTimeout), or ctx is done.
func (a *Awaiter) Wait(ctx context.Context, p Prompt) (string, error) {
	p.EnsureID()
	entry := &pending{prompt: p, created: time.Now(), answer: make(chan string, 1)}

	a.mu.Lock()
	if _, exists := a.waiting[p.ID]; exists {
		a.mu.Unlock()
		return "", fmt.Errorf("decision %s is already pending", p.ID)
	}
	a.waiting[p.ID] = entry
	a.mu.Unlock()

	// The channel is never closed: Provide sends under the lock and only
	// while the entry is registered.
	defer func() {
		a.mu.Lock()
		delete(a.waiting, p.ID)
		a.mu.Unlock()
	}()

	timer := time.NewTimer(p.timeout())
	defer timer.Stop()

	slog.Debug("Waiting for decision", "id", p.ID, "kind", p.Kind, "timeout", p.timeout())

	select {
	case v := <-entry.answer:
		return v, nil
	case <-timer.C:
		slog.Info("Decision timed out", "id", p.ID, "kind", p.Kind)
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Provide delivers the answer to the prompt with id.
func (a *Awaiter) Provide(id, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.waiting[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWaiting, id)
	}
	select {
	case entry.answer <- value:
		return nil
	default:
		return fmt.Errorf("decision %s already answered", id)
	}
}

// IsWaiting reports whether the prompt with id is pending.
func (a *Awaiter) IsWaiting(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.waiting[id]
	return ok
}

// Pending returns the pending prompts, oldest first.
func (a *Awaiter) Pending() []Prompt {
	a.mu.Lock()
	entries := make([]*pending, 0, len(a.waiting))
	for _, e := range a.waiting {
		entries = append(entries, e)
	}
	a.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].created.Before(entries[j].created) })
	out := make([]Prompt, len(entries))
	for i, e := range entries {
		out[i] = e.prompt
	}
	return out
}
