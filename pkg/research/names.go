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
	"regexp"
	"strings"
)

var separatorCell = regexp.MustCompile(`^:?-+:?$`)

// headerNames are first-column labels that mark a header row even when the
// separator row is missing.
var headerNames = map[string]bool{"name": true, "이름": true, "성명": true}

// ParseNames returns the first-column values of the markdown table rows in
// text, in order and without duplicates. Header rows, separator rows, empty
// cells and bold markers are skipped.
func ParseNames(text string) []string {
	lines := strings.Split(text, "\n")
	var (
		names []string
		seen  = map[string]bool{}
	)
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") || isSeparator(line) {
			continue
		}
		if i+1 < len(lines) && isSeparator(strings.TrimSpace(lines[i+1])) {
			continue
		}
		cells := tableCells(line)
		if len(cells) == 0 {
			continue
		}
		name := strings.TrimSpace(strings.ReplaceAll(cells[0], "*", ""))
		if name == "" || strings.Trim(name, "-") == "" || headerNames[strings.ToLower(name)] {
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func tableCells(line string) []string {
	var cells []string
	for _, c := range strings.Split(line, "|") {
		if c = strings.TrimSpace(c); c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

func isSeparator(line string) bool {
	if !strings.HasPrefix(line, "|") {
		return false
	}
	cells := tableCells(line)
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if !separatorCell.MatchString(c) {
			return false
		}
	}
	return true
}

// SplitSelection splits a free-text answer on commas and newlines.
func SplitSelection(text string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
