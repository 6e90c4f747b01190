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

// Package model defines the conversation types and the streaming LLM
// interface driven by the tool loop.
//
// A model turn is consumed as an iter.Seq[StreamEvent]:
//   - TextDelta events carry assistant text as it arrives
//   - ToolCallOpened / ToolCallClosed bracket each requested tool call
//   - the sequence ends with exactly one TurnDone or one TurnError
package model

import (
	"context"
	"iter"
	"strings"

	"github.com/kadirpekel/dossier/pkg/tool"
)

// LLM is a streaming language model.
type LLM interface {
	// Name returns the model identifier.
	Name() string

	// Stream performs one model turn. The returned sequence always ends with
	// a single TurnDone or TurnError event.
	Stream(ctx context.Context, req *Request) iter.Seq[StreamEvent]
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType identifies the kind of a content block.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// Block is one content block of a message. Field names follow the
// Anthropic wire format so that conversations persist as-is.
type Block struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// TextBlock returns a text block.
func TextBlock(text string) Block {
	return Block{Type: BlockText, Text: text}
}

// ToolUseBlock returns the block recording a tool call requested by the model.
func ToolUseBlock(call tool.Call) Block {
	input := call.Input
	if input == nil {
		input = map[string]any{}
	}
	return Block{Type: BlockToolUse, ID: call.ID, Name: call.Name, Input: input}
}

// ToolResultBlock returns the block answering the tool call with id.
func ToolResultBlock(id, content string, isError bool) Block {
	return Block{Type: BlockToolResult, ToolUseID: id, Content: content, IsError: isError}
}

// Message is one conversation entry.
type Message struct {
	Role    Role    `json:"role"`
	Content []Block `json:"content"`
}

// UserText returns a user message holding a single text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []Block{TextBlock(text)}}
}

// AssistantText returns an assistant message holding a single text block.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: []Block{TextBlock(text)}}
}

// Text concatenates the text blocks of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool_use blocks of the message.
func (m Message) ToolUses() []Block {
	var out []Block
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// CloneMessages copies the message list and each message's block slice so
// that appending to the copy never aliases the caller's backing arrays.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: m.Role, Content: append([]Block(nil), m.Content...)}
	}
	return out
}

// Request is the input of one model turn.
type Request struct {
	System   string
	Messages []Message
	Tools    []tool.Definition
}

// EventKind discriminates StreamEvent.
type EventKind int

const (
	TextDelta EventKind = iota
	ToolCallOpened
	ToolCallClosed
	TurnDone
	TurnError
)

func (k EventKind) String() string {
	switch k {
	case TextDelta:
		return "text_delta"
	case ToolCallOpened:
		return "tool_call_opened"
	case ToolCallClosed:
		return "tool_call_closed"
	case TurnDone:
		return "turn_done"
	case TurnError:
		return "turn_error"
	default:
		return "unknown"
	}
}

// Usage reports token counts for a turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StreamEvent is one decoded event of a model turn.
//
//   - TextDelta: Text
//   - ToolCallOpened: ToolCall with ID and Name, no input yet
//   - ToolCallClosed: ToolCall with the parsed Input
//   - TurnDone: Text holds the turn's full text, StopReason and Usage are set
//   - TurnError: Err
type StreamEvent struct {
	Kind       EventKind
	Text       string
	ToolCall   *tool.Call
	StopReason string
	Usage      Usage
	Err        error
}
