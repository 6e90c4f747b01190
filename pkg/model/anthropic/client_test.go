package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/tool"
)

func sseServer(t *testing.T, check func(*apiRequest), payloads ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if check != nil {
			check(&req)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, p := range payloads {
			fmt.Fprintf(w, "event: x\ndata: %s\n\n", p)
		}
	}))
}

func collect(seq func(func(model.StreamEvent) bool)) []model.StreamEvent {
	var out []model.StreamEvent
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}

func TestClient_Stream(t *testing.T) {
	server := sseServer(t, func(req *apiRequest) {
		assert.True(t, req.Stream)
		assert.Equal(t, "system prompt", req.System)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "tool_use", req.Messages[1].Content[1].Type)
		assert.Equal(t, "(no output)", req.Messages[2].Content[0].Content)
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "search_google", req.Tools[0].Name)
	},
		`{"type":"message_start","message":{"id":"m"}}`,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
		`{"type":"message_stop"}`,
	)
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	def, err := tool.Describe(tool.SearchGoogle)
	require.NoError(t, err)

	req := &model.Request{
		System: "system prompt",
		Messages: []model.Message{
			model.UserText("research ACME"),
			{Role: model.RoleAssistant, Content: []model.Block{
				model.TextBlock("looking"),
				model.ToolUseBlock(tool.Call{ID: "t1", Name: "search_google"}),
			}},
			{Role: model.RoleUser, Content: []model.Block{model.ToolResultBlock("t1", "", false)}},
		},
		Tools: []tool.Definition{def},
	}

	events := collect(client.Stream(context.Background(), req))
	require.Len(t, events, 2)
	assert.Equal(t, model.TextDelta, events[0].Kind)
	assert.Equal(t, model.TurnDone, events[1].Kind)
	assert.Equal(t, "Hello", events[1].Text)
	assert.Equal(t, "end_turn", events[1].StopReason)
}

func TestClient_StreamTruncated(t *testing.T) {
	server := sseServer(t, nil,
		`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`,
	)
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	events := collect(client.Stream(context.Background(), &model.Request{Messages: []model.Message{model.UserText("hi")}}))
	require.Len(t, events, 2)
	assert.Equal(t, model.TurnError, events[1].Kind)
	assert.ErrorIs(t, events[1].Err, ErrTruncatedStream)
}

func TestClient_StreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	events := collect(client.Stream(context.Background(), &model.Request{}))
	require.Len(t, events, 1)
	assert.Equal(t, model.TurnError, events[0].Kind)
	assert.True(t, strings.Contains(events[0].Err.Error(), "status 400"))
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestDataLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"data: {}\n", "{}", true},
		{"data:{}\r\n", "{}", true},
		{"event: ping\n", "", false},
		{"data: [DONE]\n", "", false},
		{"\n", "", false},
	}
	for _, tt := range tests {
		got, ok := dataLine(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
