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

package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// NoData is the result text for a lookup that found nothing.
const NoData = "no data"

// truncatedMarker is appended to results cut down to the budget.
const truncatedMarker = "\n...[truncated]"

// charsPerToken approximates token length when no encoding is available.
const charsPerToken = 4

// Render converts a tool result into the text handed back to the model.
// Strings pass through, nil values become NoData and everything else is
// rendered as indented JSON.
func Render(v any) (string, error) {
	if isNil(v) {
		return NoData, nil
	}
	if s, ok := v.(string); ok {
		return s, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("failed to render result: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Truncator caps tool results to a token budget so one oversized page does
// not crowd out the rest of the conversation.
type Truncator struct {
	maxTokens int
	encoding  *tiktoken.Tiktoken
}

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Debug("Token encoding unavailable, falling back to character budget", "error", err)
			return
		}
		encoding = enc
	})
	return encoding
}

// NewTruncator returns a truncator with the given token budget. A budget of
// zero or less disables truncation.
func NewTruncator(maxTokens int) *Truncator {
	t := &Truncator{maxTokens: maxTokens}
	if maxTokens > 0 {
		t.encoding = loadEncoding()
	}
	return t
}

// Truncate cuts s to the budget.
func (t *Truncator) Truncate(s string) string {
	if t == nil || t.maxTokens <= 0 {
		return s
	}

	if t.encoding == nil {
		limit := t.maxTokens * charsPerToken
		runes := []rune(s)
		if len(runes) <= limit {
			return s
		}
		return string(runes[:limit]) + truncatedMarker
	}

	tokens := t.encoding.Encode(s, nil, nil)
	if len(tokens) <= t.maxTokens {
		return s
	}
	return t.encoding.Decode(tokens[:t.maxTokens]) + truncatedMarker
}
