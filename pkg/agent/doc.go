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

// Package agent runs one research workflow turn against the tool loop.
//
// A Runner takes a workflow, a subject company and the prior messages,
// assembles the system prompt and the subject context, and streams the
// run as Events: text fragments, progress over the workflow steps, and a
// terminal done or error event carrying the final conversation.
//
//	runner := agent.NewRunner(toolloop.New(llm, dispatcher))
//	for ev := range runner.Run(ctx, agent.Input{Workflow: workflow.General, Subject: c}) {
//		...
//	}
package agent
