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

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

// SubjectContext renders the subject block the model sees first.
func SubjectContext(c company.Company) string {
	name := c.Name
	if name == "" {
		name = "unknown"
	}

	lines := []string{
		"## Target company",
		"- Name: " + name,
		"- Corporate registration number (jurir_no): " + c.CorpRegNo,
	}
	if c.CorpCode != "" {
		lines = append(lines, "- DART corp code (corp_code): "+c.CorpCode)
	}
	if c.BizRegNo != "" {
		lines = append(lines, "- Business registration number (bizr_no): "+c.BizRegNo)
	}
	if c.CorpClass != "" {
		lines = append(lines, "- Listing: "+c.MarketLabel())
	}
	if c.Industry != "" {
		lines = append(lines, "- Industry: "+c.Industry)
	}
	if c.CEO != "" {
		lines = append(lines, "- CEO: "+c.CEO)
	}
	if c.HasDisclosure() {
		lines = append(lines, "- DART disclosure data: usable")
	} else {
		lines = append(lines, "- DART disclosure data: not usable (registry-only subject)")
	}
	if c.Homepage != "" {
		lines = append(lines, "- Homepage: "+c.Homepage)
	}
	return strings.Join(lines, "\n")
}

// InitialRequest builds the first user message of a fresh research run.
func InitialRequest(def *workflow.Definition, c company.Company) string {
	return fmt.Sprintf(
		"%s\n\nStart the %s for the company above. Use the tools to collect the data you need "+
			"and write the report section by section.",
		SubjectContext(c), def.Label,
	)
}
