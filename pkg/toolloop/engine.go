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

// Package toolloop drives a model through repeated turns, executing the tool
// calls of each turn and feeding the results back until the model answers
// without calling a tool.
//
// A turn works on the message list as follows:
//
//  1. the model is streamed with the current messages
//  2. one assistant message is appended holding the turn's text and a
//     tool_use block per closed tool call
//  3. every tool call is executed, in the order the calls closed
//  4. one user message is appended holding all tool_result blocks
//
// The loop has no iteration cap. It ends with a single Done event when a turn
// closes no tool call, or a single Error event when a turn fails.
package toolloop

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/observability"
	"github.com/kadirpekel/dossier/pkg/tool"
)

// ErrIncompleteTurn is reported when a model stream ends without a terminal
// event.
var ErrIncompleteTurn = errors.New("model turn ended without completion")

// DefaultMaxParallel bounds concurrent tool executions in parallel mode.
const DefaultMaxParallel = 8

// EventKind discriminates Event.
type EventKind int

const (
	// EventText carries a text fragment streamed by the model.
	EventText EventKind = iota
	// EventToolCallOpened announces a tool call before its input is known.
	EventToolCallOpened
	// EventToolCallClosed carries a tool call with its parsed input.
	EventToolCallClosed
	// EventToolResult carries the outcome of an executed tool call.
	EventToolResult
	// EventDone ends a successful run.
	EventDone
	// EventError ends a failed run.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventToolCallOpened:
		return "tool_call_opened"
	case EventToolCallClosed:
		return "tool_call_closed"
	case EventToolResult:
		return "tool_result"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one observable step of a run.
type Event struct {
	Kind EventKind

	// Text is the fragment for EventText and the accumulated text of all
	// turns for EventDone.
	Text string

	// ToolCall is set for tool call and tool result events.
	ToolCall *tool.Call

	// Result and IsError describe an EventToolResult.
	Result  string
	IsError bool

	// ToolCallCount is the number of tool calls executed so far. Set on
	// EventDone and EventError.
	ToolCallCount int

	// Messages is the conversation as it stood when the run ended. Set on
	// EventDone and EventError.
	Messages []model.Message

	Err error
}

// Engine runs the tool loop.
type Engine struct {
	llm         model.LLM
	executor    tool.Executor
	parallel    bool
	maxParallel int
	metrics     observability.Metrics
	tracer      trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelTools executes the tool calls of a turn concurrently. Results
// still reach the conversation in closing order.
func WithParallelTools(enabled bool) Option {
	return func(e *Engine) {
		e.parallel = enabled
	}
}

// WithMaxParallel bounds concurrent tool executions.
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxParallel = n
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an Engine.
func New(llm model.LLM, executor tool.Executor, opts ...Option) *Engine {
	e := &Engine{
		llm:         llm,
		executor:    executor,
		maxParallel: DefaultMaxParallel,
		metrics:     observability.NoopMetrics{},
		tracer:      noop.NewTracerProvider().Tracer(observability.InstrumentationName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// outcome is the result of one executed tool call.
type outcome struct {
	content string
	isError bool
}

// Run executes the loop for req. The caller's message slice is not modified.
func (e *Engine) Run(ctx context.Context, req model.Request) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		ctx, span := e.tracer.Start(ctx, observability.SpanToolLoop,
			trace.WithAttributes(attribute.String(observability.AttrModel, e.llm.Name())),
		)
		defer span.End()

		messages := model.CloneMessages(req.Messages)
		var all strings.Builder
		toolCalls := 0

		fail := func(err error) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(Event{Kind: EventError, Err: err, ToolCallCount: toolCalls, Messages: messages})
		}

		for turn := 1; ; turn++ {
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}

			turnReq := &model.Request{System: req.System, Messages: messages, Tools: req.Tools}
			res, ok := e.streamTurn(ctx, turnReq, &all, yield)
			if !ok {
				return
			}
			if res.err != nil {
				fail(res.err)
				return
			}
			text, calls := res.text, res.calls

			if len(calls) == 0 {
				if text != "" {
					messages = append(messages, model.AssistantText(text))
				}
				span.SetAttributes(attribute.Int(observability.AttrToolCallCount, toolCalls))
				yield(Event{Kind: EventDone, Text: all.String(), ToolCallCount: toolCalls, Messages: messages})
				return
			}

			assistant := model.Message{Role: model.RoleAssistant}
			if text != "" {
				assistant.Content = append(assistant.Content, model.TextBlock(text))
			}
			for _, call := range calls {
				assistant.Content = append(assistant.Content, model.ToolUseBlock(call))
			}
			messages = append(messages, assistant)

			slog.Debug("Executing tool calls", "turn", turn, "count", len(calls), "parallel", e.parallel && len(calls) > 1)
			outcomes := e.execute(ctx, calls)
			toolCalls += len(calls)

			results := model.Message{Role: model.RoleUser}
			for i, call := range calls {
				c := call
				if !yield(Event{Kind: EventToolResult, ToolCall: &c, Result: outcomes[i].content, IsError: outcomes[i].isError}) {
					return
				}
				results.Content = append(results.Content, model.ToolResultBlock(call.ID, outcomes[i].content, outcomes[i].isError))
			}
			messages = append(messages, results)
		}
	}
}

// turnResult is what one model turn produced.
type turnResult struct {
	text  string
	calls []tool.Call
	err   error
}

// streamTurn streams one model turn, forwarding text and tool call events.
// It returns false when the consumer stopped iterating.
func (e *Engine) streamTurn(
	ctx context.Context,
	req *model.Request,
	all *strings.Builder,
	yield func(Event) bool,
) (turnResult, bool) {
	ctx, span := e.tracer.Start(ctx, observability.SpanLLMRequest)
	defer span.End()

	start := time.Now()
	var (
		sb       strings.Builder
		usage    model.Usage
		calls    []tool.Call
		err      error
		finished bool
	)

	for ev := range e.llm.Stream(ctx, req) {
		switch ev.Kind {
		case model.TextDelta:
			sb.WriteString(ev.Text)
			all.WriteString(ev.Text)
			if !yield(Event{Kind: EventText, Text: ev.Text}) {
				return turnResult{}, false
			}
		case model.ToolCallOpened:
			if !yield(Event{Kind: EventToolCallOpened, ToolCall: ev.ToolCall}) {
				return turnResult{}, false
			}
		case model.ToolCallClosed:
			if ev.ToolCall == nil {
				continue
			}
			calls = append(calls, *ev.ToolCall)
			if !yield(Event{Kind: EventToolCallClosed, ToolCall: ev.ToolCall}) {
				return turnResult{}, false
			}
		case model.TurnDone:
			usage = ev.Usage
			finished = true
			span.SetAttributes(attribute.String(observability.AttrStopReason, ev.StopReason))
		case model.TurnError:
			err = ev.Err
			if err == nil {
				err = ErrIncompleteTurn
			}
			finished = true
		}
		if finished {
			break
		}
	}
	if !finished {
		err = ErrIncompleteTurn
	}

	span.SetAttributes(
		attribute.Int(observability.AttrInputTokens, usage.InputTokens),
		attribute.Int(observability.AttrOutputTokens, usage.OutputTokens),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.metrics.RecordLLMCall(ctx, e.llm.Name(), time.Since(start), usage.InputTokens, usage.OutputTokens, err)

	return turnResult{text: sb.String(), calls: calls, err: err}, true
}

// execute runs the calls and returns their outcomes in call order.
func (e *Engine) execute(ctx context.Context, calls []tool.Call) []outcome {
	outcomes := make([]outcome, len(calls))
	if !e.parallel || len(calls) < 2 {
		for i, call := range calls {
			outcomes[i] = e.callTool(ctx, call)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(e.maxParallel)
	for i, call := range calls {
		g.Go(func() error {
			outcomes[i] = e.callTool(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// callTool executes one call. Failures become diagnostic results so that the
// model can react to them.
func (e *Engine) callTool(ctx context.Context, call tool.Call) (out outcome) {
	ctx, span := e.tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrToolName, call.Name),
			attribute.String(observability.AttrToolCallID, call.ID),
		),
	)
	defer span.End()

	start := time.Now()
	var execErr error
	defer func() {
		if r := recover(); r != nil {
			execErr = fmt.Errorf("panic: %v", r)
			out = outcome{content: diagnostic(execErr), isError: true}
		}
		if execErr != nil {
			span.RecordError(execErr)
			span.SetStatus(codes.Error, execErr.Error())
			slog.Warn("Tool execution failed", "tool", call.Name, "id", call.ID, "error", execErr)
		}
		e.metrics.RecordToolExecution(ctx, call.Name, time.Since(start), execErr)
	}()

	input := call.Input
	if input == nil {
		input = map[string]any{}
	}
	result, execErr := e.executor.Execute(ctx, call.Name, input)
	if execErr != nil {
		return outcome{content: diagnostic(execErr), isError: true}
	}
	return outcome{content: result}
}

func diagnostic(err error) string {
	return "tool execution error: " + err.Error()
}
