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

package hitl

import (
	"context"
	"sync"
)

// Static answers prompts from a fixed script. Once the script is exhausted
// every prompt times out, so an empty Static is an unattended decider.
type Static struct {
	mu      sync.Mutex
	answers []string
	prompts []Prompt
}

var _ Decider = (*Static)(nil)

// NewStatic returns a decider answering successive prompts with answers.
func NewStatic(answers ...string) *Static {
	return &Static{answers: answers}
}

// Unattended returns a decider on which every prompt times out.
func Unattended() *Static {
	return &Static{}
}

// Decide implements Decider.
func (s *Static) Decide(ctx context.Context, p Prompt) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)
	if len(s.answers) == 0 {
		return Decision{TimedOut: true}, nil
	}
	v := s.answers[0]
	s.answers = s.answers[1:]
	return Decision{Value: v}, nil
}

// Prompts returns the prompts seen so far.
func (s *Static) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Prompt(nil), s.prompts...)
}
