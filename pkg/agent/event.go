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

package agent

import "github.com/kadirpekel/dossier/pkg/model"

// EventKind discriminates Event.
type EventKind string

const (
	// EventText carries a streamed text fragment.
	EventText EventKind = "text"

	// EventProgress reports the step cursor or tool activity.
	EventProgress EventKind = "progress"

	// EventDone ends a successful run.
	EventDone EventKind = "done"

	// EventError ends a failed run.
	EventError EventKind = "error"
)

// Event is a workflow-level lifecycle event.
type Event struct {
	Kind EventKind `json:"type"`

	// Content is the text fragment, the progress label, the full report on
	// done, or the failure message on error.
	Content string `json:"content,omitempty"`

	// Step, Total and Percent locate a progress event in the workflow.
	Step    int `json:"step"`
	Total   int `json:"total"`
	Percent int `json:"percent"`

	// ToolName is set on progress events caused by tool activity.
	ToolName string `json:"tool_name,omitempty"`

	// ToolCallCount is set on done and error.
	ToolCallCount int `json:"tool_call_count,omitempty"`

	// Messages is the conversation after the run. Set on done and error.
	Messages []model.Message `json:"-"`

	Err error `json:"-"`
}

// IsTerminal reports whether the event ends a run.
func (e Event) IsTerminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}
