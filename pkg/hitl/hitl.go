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

// Package hitl collects human decisions with a bounded wait.
//
// A timeout is an ordinary outcome, reported through Decision.TimedOut, and
// callers fall back to their documented default.
package hitl

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a wait when the prompt does not set one.
const DefaultTimeout = 5 * time.Minute

// ErrTimeout is returned by Awaiter.Wait when no answer arrived in time.
var ErrTimeout = errors.New("timed out waiting for a decision")

// ErrNotWaiting is returned when an answer targets no pending prompt.
var ErrNotWaiting = errors.New("no pending decision")

// Kind is the shape of the answer a prompt expects.
type Kind string

const (
	// KindChoice expects one of Prompt.Options.
	KindChoice Kind = "choice"

	// KindText expects free text.
	KindText Kind = "text"
)

// Prompt is a question put to a human.
type Prompt struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Subject  string        `json:"subject,omitempty"`
	Question string        `json:"question"`
	Options  []string      `json:"options,omitempty"`
	Timeout  time.Duration `json:"timeout"`
}

// EnsureID assigns a random ID when the prompt has none.
func (p *Prompt) EnsureID() {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
}

func (p Prompt) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// Decision is the answer to a prompt.
type Decision struct {
	Value    string `json:"value"`
	TimedOut bool   `json:"timed_out"`
}

// Decider obtains decisions. Implementations block until an answer arrives,
// the prompt times out, or ctx is done; only the last is an error.
type Decider interface {
	Decide(ctx context.Context, p Prompt) (Decision, error)
}

// DeciderFunc adapts a function to Decider.
type DeciderFunc func(ctx context.Context, p Prompt) (Decision, error)

func (f DeciderFunc) Decide(ctx context.Context, p Prompt) (Decision, error) {
	return f(ctx, p)
}
