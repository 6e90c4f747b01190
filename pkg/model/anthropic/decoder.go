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

package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/tool"
)

// ErrTruncatedStream is reported when the stream ends before message_stop.
var ErrTruncatedStream = errors.New("stream ended before message_stop")

// streamEvent is one SSE data payload of the Messages streaming API.
type streamEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	Message      *apiMessage  `json:"message,omitempty"`
	ContentBlock *apiContent  `json:"content_block,omitempty"`
	Delta        *apiDelta    `json:"delta,omitempty"`
	Usage        *apiUsage    `json:"usage,omitempty"`
	Error        *apiErrorObj `json:"error,omitempty"`
}

type apiMessage struct {
	ID    string    `json:"id"`
	Usage *apiUsage `json:"usage,omitempty"`
}

type apiDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiErrorObj struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// pendingCall is the single tool call being assembled.
type pendingCall struct {
	index int
	id    string
	name  string
	input strings.Builder
}

// Decoder turns the SSE payloads of one turn into model.StreamEvents.
//
// At most one tool call is assembled at a time. A tool_use block that starts
// while another is pending is a protocol violation; the intruding block is
// dropped together with its fragments and its stop, and the pending call is
// left untouched. Once a TurnDone or TurnError has been produced the decoder
// ignores further input.
type Decoder struct {
	pending    *pendingCall
	ignored    map[int]bool
	text       strings.Builder
	stopReason string
	usage      model.Usage
	finished   bool
}

// NewDecoder returns a decoder for one model turn.
func NewDecoder() *Decoder {
	return &Decoder{ignored: make(map[int]bool)}
}

// Finished reports whether a terminal event has been produced.
func (d *Decoder) Finished() bool {
	return d.finished
}

// Decode consumes one SSE data payload.
func (d *Decoder) Decode(data []byte) []model.StreamEvent {
	if d.finished {
		return nil
	}

	var ev streamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return d.fail(fmt.Errorf("malformed stream event: %w", err))
	}

	switch ev.Type {
	case "message_start":
		if ev.Message != nil && ev.Message.Usage != nil {
			d.usage.InputTokens = ev.Message.Usage.InputTokens
		}

	case "content_block_start":
		return d.blockStart(ev)

	case "content_block_delta":
		return d.blockDelta(ev)

	case "content_block_stop":
		return d.blockStop(ev.Index)

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			d.stopReason = ev.Delta.StopReason
		}
		if ev.Usage != nil {
			d.usage.OutputTokens = ev.Usage.OutputTokens
			if ev.Usage.InputTokens > 0 {
				d.usage.InputTokens = ev.Usage.InputTokens
			}
		}

	case "message_stop":
		if d.pending != nil {
			slog.Warn("Tool call never closed, dropping", "tool", d.pending.name, "id", d.pending.id)
			d.pending = nil
		}
		d.finished = true
		return []model.StreamEvent{{
			Kind:       model.TurnDone,
			Text:       d.text.String(),
			StopReason: d.stopReason,
			Usage:      d.usage,
		}}

	case "error":
		msg := "unknown error"
		if ev.Error != nil {
			msg = ev.Error.Type + ": " + ev.Error.Message
		}
		return d.fail(fmt.Errorf("stream error: %s", msg))

	case "ping":
	default:
		slog.Debug("Ignoring stream event", "type", ev.Type)
	}
	return nil
}

// Close ends the turn. If no terminal event was produced yet, err (or
// ErrTruncatedStream when err is nil) is reported as a TurnError.
func (d *Decoder) Close(err error) []model.StreamEvent {
	if d.finished {
		return nil
	}
	if err == nil {
		err = ErrTruncatedStream
	}
	return d.fail(err)
}

func (d *Decoder) fail(err error) []model.StreamEvent {
	d.finished = true
	d.pending = nil
	return []model.StreamEvent{{Kind: model.TurnError, Err: err}}
}

func (d *Decoder) blockStart(ev streamEvent) []model.StreamEvent {
	if ev.ContentBlock == nil {
		return nil
	}

	switch ev.ContentBlock.Type {
	case "tool_use":
		if d.pending != nil {
			slog.Warn("Tool call opened while another is pending, ignoring",
				"pending", d.pending.name, "intruder", ev.ContentBlock.Name, "index", ev.Index)
			d.ignored[ev.Index] = true
			return nil
		}
		d.pending = &pendingCall{index: ev.Index, id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
		return []model.StreamEvent{{
			Kind:     model.ToolCallOpened,
			ToolCall: &tool.Call{ID: ev.ContentBlock.ID, Name: ev.ContentBlock.Name},
		}}

	case "text":
		if ev.ContentBlock.Text != "" {
			return d.emitText(ev.ContentBlock.Text)
		}
	}
	return nil
}

func (d *Decoder) blockDelta(ev streamEvent) []model.StreamEvent {
	if ev.Delta == nil || d.ignored[ev.Index] {
		return nil
	}

	switch ev.Delta.Type {
	case "text_delta":
		if ev.Delta.Text != "" {
			return d.emitText(ev.Delta.Text)
		}
	case "input_json_delta":
		if d.pending != nil && d.pending.index == ev.Index {
			d.pending.input.WriteString(ev.Delta.PartialJSON)
		}
	}
	return nil
}

func (d *Decoder) blockStop(index int) []model.StreamEvent {
	if d.ignored[index] {
		delete(d.ignored, index)
		return nil
	}
	if d.pending == nil || d.pending.index != index {
		return nil
	}

	call := &tool.Call{ID: d.pending.id, Name: d.pending.name, Input: parseInput(d.pending.input.String())}
	d.pending = nil
	return []model.StreamEvent{{Kind: model.ToolCallClosed, ToolCall: call}}
}

func (d *Decoder) emitText(text string) []model.StreamEvent {
	d.text.WriteString(text)
	return []model.StreamEvent{{Kind: model.TextDelta, Text: text}}
}

// parseInput parses accumulated tool input. Empty or invalid input becomes
// an empty map.
func parseInput(raw string) map[string]any {
	input := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return input
	}
	if err := json.Unmarshal([]byte(raw), &input); err != nil || input == nil {
		slog.Warn("Discarding unparsable tool input", "error", err, "bytes", len(raw))
		return map[string]any{}
	}
	return input
}
