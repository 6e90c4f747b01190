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
	"github.com/kadirpekel/dossier/pkg/model"
)

type apiRequest struct {
	Model       string          `json:"model"`
	Messages    []apiRequestMsg `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
	System      string          `json:"system,omitempty"`
	Tools       []apiTool       `json:"tools,omitempty"`
}

type apiRequestMsg struct {
	Role    string       `json:"role"`
	Content []apiContent `json:"content"`
}

type apiContent struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Input     any    `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type apiTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// buildRequest converts a model.Request into the Messages API payload.
func (c *Client) buildRequest(req *model.Request) *apiRequest {
	apiReq := &apiRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Stream:      true,
		System:      req.System,
	}

	for _, msg := range req.Messages {
		converted := apiRequestMsg{Role: string(msg.Role)}
		for _, b := range msg.Content {
			if content, ok := convertBlock(b); ok {
				converted.Content = append(converted.Content, content)
			}
		}
		if len(converted.Content) == 0 {
			continue
		}
		apiReq.Messages = append(apiReq.Messages, converted)
	}

	for _, def := range req.Tools {
		schema := def.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		apiReq.Tools = append(apiReq.Tools, apiTool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: schema,
		})
	}

	return apiReq
}

func convertBlock(b model.Block) (apiContent, bool) {
	switch b.Type {
	case model.BlockText:
		// The API rejects empty text blocks.
		if b.Text == "" {
			return apiContent{}, false
		}
		return apiContent{Type: "text", Text: b.Text}, true

	case model.BlockToolUse:
		input := b.Input
		if input == nil {
			input = map[string]any{}
		}
		return apiContent{Type: "tool_use", ID: b.ID, Name: b.Name, Input: input}, true

	case model.BlockToolResult:
		content := b.Content
		if content == "" {
			content = "(no output)"
		}
		return apiContent{Type: "tool_result", ToolUseID: b.ToolUseID, Content: content, IsError: b.IsError}, true
	}
	return apiContent{}, false
}
