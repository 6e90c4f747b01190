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

// Package section slices a finished report into the named sections of its
// workflow.
package section

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel/dossier/pkg/workflow"
)

// Section is one extracted slice of a report.
type Section struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Sections is an ordered set of sections with unique keys.
type Sections []Section

// Get returns the section with key.
func (s Sections) Get(key string) (Section, bool) {
	for _, sec := range s {
		if sec.Key == key {
			return sec, true
		}
	}
	return Section{}, false
}

// Keys returns the section keys in order.
func (s Sections) Keys() []string {
	keys := make([]string, len(s))
	for i, sec := range s {
		keys[i] = sec.Key
	}
	return keys
}

// Map returns the contents keyed by section key.
func (s Sections) Map() map[string]string {
	m := make(map[string]string, len(s))
	for _, sec := range s {
		m[sec.Key] = sec.Content
	}
	return m
}

// put stores sec, replacing the content of an existing key in place.
func (s Sections) put(sec Section) Sections {
	for i := range s {
		if s[i].Key == sec.Key {
			s[i] = sec
			return s
		}
	}
	return append(s, sec)
}

// profileHeading matches "## <name> Profile" and "### <name> Profile".
var profileHeading = regexp.MustCompile(`(?mi)^#{2,3}[ \t]+(.+?)[ \t]*\bProfile[ \t]*$`)

// Extract splits text into the sections of workflow id.
//
// A line opens a section when its de-hashed content contains the title of a
// schema entry or, with spaces turned into underscores, its key. The first
// matching entry wins and the line itself belongs to the new section. Lines
// before the first match are dropped. Unknown workflows yield a single "full"
// section. For the executives workflow every profile heading additionally
// yields a profile_<i> section running to the next profile heading.
func Extract(id workflow.ID, text string) Sections {
	if strings.TrimSpace(text) == "" {
		return Sections{}
	}

	def, ok := workflow.Lookup(id)
	if !ok || len(def.Sections) == 0 {
		return Sections{{Key: workflow.SectionFull, Title: workflow.SectionFull, Content: text}}
	}

	out := Sections{}
	var (
		current *workflow.SectionSpec
		lines   []string
	)
	flush := func() {
		if current != nil {
			out = out.put(Section{
				Key:     current.Key,
				Title:   current.Title,
				Content: strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n"),
			})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if spec := match(line, def.Sections); spec != nil {
			flush()
			current = spec
			lines = []string{line}
			continue
		}
		if current != nil {
			lines = append(lines, line)
		}
	}
	flush()

	if id == workflow.Executives {
		out = append(out, profiles(text)...)
	}
	return out
}

// match returns the schema entry line opens, or nil.
func match(line string, specs []workflow.SectionSpec) *workflow.SectionSpec {
	stripped := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
	if stripped == "" {
		return nil
	}
	normalized := normalize(stripped)
	keyed := strings.ReplaceAll(strings.ToLower(stripped), " ", "_")

	for i := range specs {
		if strings.Contains(normalized, normalize(specs[i].Title)) || strings.Contains(keyed, specs[i].Key) {
			return &specs[i]
		}
	}
	return nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// profiles extracts the dynamic profile sections.
func profiles(text string) Sections {
	locs := profileHeading.FindAllStringSubmatchIndex(text, -1)
	out := make(Sections, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		heading := text[loc[0]:loc[1]]
		out = append(out, Section{
			Key:     fmt.Sprintf("%s%d", workflow.ProfilePrefix, i),
			Title:   strings.TrimSpace(strings.TrimLeft(heading, "#")),
			Content: strings.TrimSpace(text[loc[0]:end]),
		})
	}
	return out
}

// ProfileName returns the subject named by a profile section title.
func ProfileName(title string) string {
	if m := profileHeading.FindStringSubmatch("## " + title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return title
}
