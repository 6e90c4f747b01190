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
	"github.com/kadirpekel/dossier/pkg/agent"
	"github.com/kadirpekel/dossier/pkg/hitl"
)

// EventKind discriminates Event.
type EventKind string

const (
	// EventAgent wraps a run-level event: text, progress, done or error.
	EventAgent EventKind = "agent"

	// EventPhase reports a phase transition of an executive run.
	EventPhase EventKind = "phase"

	// EventPrompt announces a pending human decision before the wait starts.
	EventPrompt EventKind = "prompt"

	// EventSelection reports the resolved profiling targets.
	EventSelection EventKind = "selection"

	// EventSectionSaved reports a persisted section.
	EventSectionSaved EventKind = "section_saved"

	// EventAborted ends a run that stopped without a report.
	EventAborted EventKind = "aborted"

	// EventCompleted ends a run whose results were persisted.
	EventCompleted EventKind = "completed"
)

// Event is one item of a research stream.
type Event struct {
	Kind    EventKind    `json:"kind"`
	Phase   *Phase       `json:"phase,omitempty"`
	Agent   *agent.Event `json:"agent,omitempty"`
	Prompt  *hitl.Prompt `json:"prompt,omitempty"`
	Names   []string     `json:"names,omitempty"`
	Section string       `json:"section,omitempty"`
	Message string       `json:"message,omitempty"`
	Err     error        `json:"-"`
}

func agentEvent(ev agent.Event) Event {
	return Event{Kind: EventAgent, Agent: &ev}
}

func phaseEvent(p Phase) Event {
	return Event{Kind: EventPhase, Phase: &p}
}

func abortedEvent(msg string, err error) Event {
	p := PhaseAborted
	return Event{Kind: EventAborted, Phase: &p, Message: msg, Err: err}
}
