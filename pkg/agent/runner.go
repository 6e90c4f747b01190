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

package agent

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/observability"
	"github.com/kadirpekel/dossier/pkg/tool"
	"github.com/kadirpekel/dossier/pkg/toolloop"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

// Input describes one run.
type Input struct {
	Workflow workflow.ID
	Subject  company.Company

	// Messages is the prior conversation. When empty and UserInput is empty,
	// the run starts from the subject context.
	Messages []model.Message

	// UserInput is appended as a new user message when non-empty.
	UserInput string
}

// Runner adapts tool loop runs to research workflows.
type Runner struct {
	engine  *toolloop.Engine
	metrics observability.Metrics
	tracer  trace.Tracer
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.Metrics) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewRunner creates a Runner on top of engine.
func NewRunner(engine *toolloop.Engine, opts ...RunnerOption) *Runner {
	r := &Runner{
		engine:  engine,
		metrics: observability.NoopMetrics{},
		tracer:  noop.NewTracerProvider().Tracer(observability.InstrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes a workflow run. The sequence always ends with exactly one
// EventDone or EventError.
func (r *Runner) Run(ctx context.Context, in Input) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		def, ok := workflow.Lookup(in.Workflow)
		if !ok {
			err := fmt.Errorf("unknown workflow %q", in.Workflow)
			yield(Event{Kind: EventError, Content: err.Error(), Err: err, Messages: in.Messages})
			return
		}
		tools, err := def.ToolDefinitions()
		if err != nil {
			yield(Event{Kind: EventError, Content: "tool catalog: " + err.Error(), Err: err, Messages: in.Messages})
			return
		}

		ctx, span := r.tracer.Start(ctx, observability.SpanResearchRun,
			trace.WithAttributes(
				attribute.String(observability.AttrWorkflow, string(in.Workflow)),
				attribute.String(observability.AttrSubject, in.Subject.Key()),
			),
		)
		defer span.End()

		messages := model.CloneMessages(in.Messages)
		switch {
		case in.UserInput != "":
			messages = append(messages, model.UserText(in.UserInput))
		case len(messages) == 0:
			messages = append(messages, model.UserText(InitialRequest(def, in.Subject)))
		}

		slog.Info("Run started", "workflow", in.Workflow, "subject", in.Subject.Name)
		start := time.Now()

		cur := newCursor(len(def.Steps))
		if !yield(r.progress(cur, def.StepLabel(0), "")) {
			return
		}

		for ev := range r.engine.Run(ctx, model.Request{System: def.SystemPrompt(), Messages: messages, Tools: tools}) {
			switch ev.Kind {
			case toolloop.EventText:
				if !yield(Event{Kind: EventText, Content: ev.Text}) {
					return
				}
				if cur.observe(ev.Text) {
					if !yield(r.progress(cur, def.StepLabel(cur.step), "")) {
						return
					}
				}

			case toolloop.EventToolCallOpened:
				name := ev.ToolCall.Name
				content := "calling " + name
				if label, ok := tool.Label(name); ok {
					content = label
				}
				if !yield(r.progress(cur, content, name)) {
					return
				}

			case toolloop.EventToolCallClosed:
				name := ev.ToolCall.Name
				content := name + " finished"
				if label, ok := tool.Label(name); ok {
					content = label + " finished"
				}
				if !yield(r.progress(cur, content, name)) {
					return
				}

			case toolloop.EventToolResult:
				if ev.IsError {
					slog.Debug("Tool returned a diagnostic", "tool", ev.ToolCall.Name, "result", ev.Result)
				}

			case toolloop.EventDone:
				r.metrics.RecordRun(ctx, string(in.Workflow), time.Since(start), ev.ToolCallCount, nil)
				span.SetAttributes(attribute.Int(observability.AttrToolCallCount, ev.ToolCallCount))
				slog.Info("Run finished", "workflow", in.Workflow, "chars", len(ev.Text), "tool_calls", ev.ToolCallCount)

				cur.finish()
				if !yield(r.progress(cur, def.StepLabel(cur.step), "")) {
					return
				}
				yield(Event{Kind: EventDone, Content: ev.Text, ToolCallCount: ev.ToolCallCount, Messages: ev.Messages})
				return

			case toolloop.EventError:
				r.metrics.RecordRun(ctx, string(in.Workflow), time.Since(start), ev.ToolCallCount, ev.Err)
				span.RecordError(ev.Err)
				span.SetStatus(codes.Error, ev.Err.Error())
				slog.Error("Run failed", "workflow", in.Workflow, "error", ev.Err)

				yield(Event{
					Kind:          EventError,
					Content:       "research run failed: " + ev.Err.Error(),
					ToolCallCount: ev.ToolCallCount,
					Messages:      ev.Messages,
					Err:           ev.Err,
				})
				return
			}
		}
	}
}

func (r *Runner) progress(cur *cursor, content, toolName string) Event {
	return Event{
		Kind:     EventProgress,
		Content:  content,
		Step:     cur.step,
		Total:    cur.total,
		Percent:  cur.percent(),
		ToolName: toolName,
	}
}

// cursor tracks the workflow step from the cadence of report headings.
type cursor struct {
	step        int
	total       int
	atLineStart bool
}

func newCursor(total int) *cursor {
	return &cursor{total: total, atLineStart: true}
}

// observe advances the step by one when fragment begins a markdown heading
// line and reports whether it moved. The step never regresses and stays
// below total while running.
func (c *cursor) observe(fragment string) bool {
	heading := (c.atLineStart && strings.HasPrefix(fragment, "#")) || strings.Contains(fragment, "\n#")
	if fragment != "" {
		c.atLineStart = strings.HasSuffix(fragment, "\n")
	}
	if !heading || c.step >= c.total-1 {
		return false
	}
	c.step++
	return true
}

func (c *cursor) finish() {
	c.step = c.total
}

func (c *cursor) percent() int {
	if c.total <= 0 {
		return 100
	}
	return c.step * 100 / c.total
}
