package toolloop_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/testutils"
	"github.com/kadirpekel/dossier/pkg/tool"
	"github.com/kadirpekel/dossier/pkg/toolloop"
)

func collect(t *testing.T, e *toolloop.Engine, req model.Request) []toolloop.Event {
	t.Helper()
	var events []toolloop.Event
	for ev := range e.Run(testutils.TestContext(t, 5*time.Second), req) {
		events = append(events, ev)
	}
	return events
}

func last(events []toolloop.Event) toolloop.Event {
	return events[len(events)-1]
}

func TestRun_NoToolsIsDone(t *testing.T) {
	llm := testutils.NewScriptedLLM(testutils.Join(testutils.Text("Hello ", "world"), testutils.Done()))
	engine := toolloop.New(llm, &testutils.StaticExecutor{})

	events := collect(t, engine, model.Request{Messages: []model.Message{model.UserText("hi")}})

	final := last(events)
	require.Equal(t, toolloop.EventDone, final.Kind)
	assert.Equal(t, "Hello world", final.Text)
	assert.Equal(t, 0, final.ToolCallCount)
	require.Len(t, final.Messages, 2)
	assert.Equal(t, model.RoleAssistant, final.Messages[1].Role)
	assert.Equal(t, "Hello world", final.Messages[1].Text())
}

func TestRun_ExecutesToolsAndFeedsResults(t *testing.T) {
	llm := testutils.NewScriptedLLM(
		testutils.Join(
			testutils.Text("Searching."),
			testutils.ToolCall("t1", "search_google", map[string]any{"query": "acme"}),
			testutils.ToolCall("t2", "fetch_webpage", map[string]any{"url": "https://acme.example.com"}),
			testutils.Done(),
		),
		testutils.Join(testutils.Text("## Overview\nReport"), testutils.Done()),
	)
	exec := &testutils.StaticExecutor{Results: map[string]string{
		"search_google": "results",
		"fetch_webpage": "page",
	}}
	engine := toolloop.New(llm, exec)

	events := collect(t, engine, model.Request{Messages: []model.Message{model.UserText("go")}})

	final := last(events)
	require.Equal(t, toolloop.EventDone, final.Kind)
	assert.Equal(t, "Searching.## Overview\nReport", final.Text)
	assert.Equal(t, 2, final.ToolCallCount)
	assert.Equal(t, []string{"search_google", "fetch_webpage"}, exec.Calls)

	// user, assistant(text + 2 tool_use), user(2 tool_result), assistant
	require.Len(t, final.Messages, 4)
	assistant := final.Messages[1]
	require.Len(t, assistant.Content, 3)
	assert.Equal(t, model.BlockText, assistant.Content[0].Type)
	assert.Len(t, assistant.ToolUses(), 2)

	results := final.Messages[2]
	assert.Equal(t, model.RoleUser, results.Role)
	require.Len(t, results.Content, 2)
	assert.Equal(t, "t1", results.Content[0].ToolUseID)
	assert.Equal(t, "results", results.Content[0].Content)
	assert.Equal(t, "t2", results.Content[1].ToolUseID)

	second := llm.Requests()[1]
	assert.Len(t, second.Messages, 3)
}

func TestRun_MultipleToolTurns(t *testing.T) {
	llm := testutils.NewScriptedLLM(
		testutils.Join(testutils.ToolCall("a1", "search_google", map[string]any{"query": "acme"}), testutils.Done()),
		testutils.Join(
			testutils.ToolCall("b1", "get_company_info", map[string]any{"jurir_no": "1101110000001"}),
			testutils.ToolCall("b2", "fetch_webpage", map[string]any{"url": "https://acme.example.com"}),
			testutils.Done(),
		),
		testutils.Join(testutils.Text("report"), testutils.Done()),
	)
	exec := &testutils.StaticExecutor{Results: map[string]string{
		"search_google":    "results",
		"get_company_info": "company",
		"fetch_webpage":    "page",
	}}
	engine := toolloop.New(llm, exec)

	events := collect(t, engine, model.Request{Messages: []model.Message{model.UserText("go")}})

	final := last(events)
	require.Equal(t, toolloop.EventDone, final.Kind)
	assert.Equal(t, 3, final.ToolCallCount)
	assert.Len(t, llm.Requests(), 3)

	// user, assistant, results, assistant, results, assistant
	require.Len(t, final.Messages, 6)
	var batches [][]string
	for _, msg := range final.Messages {
		if msg.Role != model.RoleUser {
			continue
		}
		var ids []string
		for _, block := range msg.Content {
			if block.Type == model.BlockToolResult {
				ids = append(ids, block.ToolUseID)
			}
		}
		if ids != nil {
			batches = append(batches, ids)
		}
	}
	assert.Equal(t, [][]string{{"a1"}, {"b1", "b2"}}, batches)

	for i, want := range [][]string{{"a1"}, {"b1", "b2"}} {
		var uses []string
		for _, use := range final.Messages[1+2*i].ToolUses() {
			uses = append(uses, use.ID)
		}
		assert.Equal(t, want, uses, "batch %d answers the preceding tool_use blocks", i)
	}
}

func TestRun_ToolErrorBecomesDiagnostic(t *testing.T) {
	llm := testutils.NewScriptedLLM(
		testutils.Join(testutils.ToolCall("t1", "search_google", nil), testutils.Done()),
		testutils.Join(testutils.Text("done"), testutils.Done()),
	)
	exec := &testutils.StaticExecutor{Errors: map[string]error{"search_google": errors.New("quota exceeded")}}
	engine := toolloop.New(llm, exec)

	events := collect(t, engine, model.Request{Messages: []model.Message{model.UserText("go")}})

	var result *toolloop.Event
	for i := range events {
		if events[i].Kind == toolloop.EventToolResult {
			result = &events[i]
		}
	}
	require.NotNil(t, result)
	assert.True(t, result.IsError)
	assert.Equal(t, "tool execution error: quota exceeded", result.Result)
	assert.Equal(t, toolloop.EventDone, last(events).Kind)

	block := last(events).Messages[2].Content[0]
	assert.True(t, block.IsError)
	assert.Equal(t, map[string]any{}, last(events).Messages[1].Content[0].Input)
}

func TestRun_TurnErrorEndsRun(t *testing.T) {
	boom := errors.New("overloaded")
	llm := testutils.NewScriptedLLM(testutils.Join(testutils.Text("partial"), testutils.Fail(boom)))
	engine := toolloop.New(llm, &testutils.StaticExecutor{})

	events := collect(t, engine, model.Request{})

	final := last(events)
	require.Equal(t, toolloop.EventError, final.Kind)
	assert.ErrorIs(t, final.Err, boom)
	for _, ev := range events {
		assert.NotEqual(t, toolloop.EventDone, ev.Kind)
	}
}

func TestRun_StreamWithoutTerminalEvent(t *testing.T) {
	llm := testutils.NewScriptedLLM(testutils.Text("cut"))
	engine := toolloop.New(llm, &testutils.StaticExecutor{})

	final := last(collect(t, engine, model.Request{}))
	require.Equal(t, toolloop.EventError, final.Kind)
	assert.ErrorIs(t, final.Err, toolloop.ErrIncompleteTurn)
}

func TestRun_DoesNotModifyCallerMessages(t *testing.T) {
	llm := testutils.NewScriptedLLM(testutils.Join(testutils.Text("ok"), testutils.Done()))
	engine := toolloop.New(llm, &testutils.StaticExecutor{})

	msgs := make([]model.Message, 1, 8)
	msgs[0] = model.UserText("hi")
	_ = collect(t, engine, model.Request{Messages: msgs})

	assert.Len(t, msgs, 1)
	assert.Empty(t, msgs[:cap(msgs)][1].Content)
}

type slowExecutor struct {
	delay   map[string]time.Duration
	running atomic.Int32
	peak    atomic.Int32
}

func (s *slowExecutor) Execute(ctx context.Context, name string, _ map[string]any) (string, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay[name]):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return name + " result", nil
}

func TestRun_ParallelKeepsClosingOrder(t *testing.T) {
	llm := testutils.NewScriptedLLM(
		testutils.Join(
			testutils.ToolCall("a", "slow", nil),
			testutils.ToolCall("b", "fast", nil),
			testutils.Done(),
		),
		testutils.Join(testutils.Text("done"), testutils.Done()),
	)
	exec := &slowExecutor{delay: map[string]time.Duration{"slow": 150 * time.Millisecond, "fast": 50 * time.Millisecond}}
	engine := toolloop.New(llm, exec, toolloop.WithParallelTools(true))

	events := collect(t, engine, model.Request{})

	var order []string
	for _, ev := range events {
		if ev.Kind == toolloop.EventToolResult {
			order = append(order, ev.ToolCall.ID)
		}
	}
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, int32(2), exec.peak.Load())

	results := last(events).Messages[1].Content
	assert.Equal(t, "slow result", results[0].Content)
	assert.Equal(t, "fast result", results[1].Content)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	llm := testutils.NewScriptedLLM(
		testutils.Join(testutils.ToolCall("p", "explode", nil), testutils.Done()),
		testutils.Join(testutils.Done()),
	)
	exec := tool.ExecutorFunc(func(context.Context, string, map[string]any) (string, error) {
		panic("kaboom")
	})
	engine := toolloop.New(llm, exec)

	events := collect(t, engine, model.Request{})

	final := last(events)
	require.Equal(t, toolloop.EventDone, final.Kind)
	assert.Equal(t, "tool execution error: panic: kaboom", final.Messages[1].Content[0].Content)
}

func TestRun_StopsWhenConsumerStops(t *testing.T) {
	llm := testutils.NewScriptedLLM(testutils.Join(testutils.Text("a", "b", "c"), testutils.Done()))
	engine := toolloop.New(llm, &testutils.StaticExecutor{})

	count := 0
	for range engine.Run(context.Background(), model.Request{}) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}
