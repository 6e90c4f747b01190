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

import "fmt"

// Phase is the position of a two-pass executive run.
type Phase int

const (
	PhaseCollectingList Phase = iota
	PhaseAwaitingSelection
	PhaseProfiling
	PhaseDone
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseCollectingList:
		return "collecting_list"
	case PhaseAwaitingSelection:
		return "awaiting_selection"
	case PhaseProfiling:
		return "profiling"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase name in events.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseAborted
}

// phaseMachine enforces forward-only transitions. Any live phase may abort.
type phaseMachine struct {
	current Phase
}

func (m *phaseMachine) advance(to Phase) error {
	from := m.current
	switch {
	case from.Terminal():
		return fmt.Errorf("phase %s is terminal", from)
	case to == PhaseAborted, to == from+1:
		m.current = to
		return nil
	default:
		return fmt.Errorf("invalid phase transition %s -> %s", from, to)
	}
}
