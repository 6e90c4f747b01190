// Package testutils provides testing utilities shared across packages.
package testutils

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/tool"
)

// ErrScriptExhausted is reported when a ScriptedLLM is called more often
// than it has turns.
var ErrScriptExhausted = errors.New("scripted llm: no more turns")

// Turn is the event sequence a ScriptedLLM replays for one model call.
type Turn []model.StreamEvent

// ScriptedLLM replays pre-recorded turns and records every request.
type ScriptedLLM struct {
	mu       sync.Mutex
	turns    []Turn
	requests []model.Request
}

var _ model.LLM = (*ScriptedLLM)(nil)

// NewScriptedLLM returns a model that answers call i with turns[i].
func NewScriptedLLM(turns ...Turn) *ScriptedLLM {
	return &ScriptedLLM{turns: turns}
}

func (s *ScriptedLLM) Name() string { return "scripted" }

func (s *ScriptedLLM) Stream(ctx context.Context, req *model.Request) iter.Seq[model.StreamEvent] {
	s.mu.Lock()
	s.requests = append(s.requests, model.Request{
		System:   req.System,
		Messages: model.CloneMessages(req.Messages),
		Tools:    req.Tools,
	})
	var turn Turn
	if len(s.turns) > 0 {
		turn, s.turns = s.turns[0], s.turns[1:]
	}
	s.mu.Unlock()

	return func(yield func(model.StreamEvent) bool) {
		if turn == nil {
			yield(model.StreamEvent{Kind: model.TurnError, Err: ErrScriptExhausted})
			return
		}
		for _, ev := range turn {
			if ctx.Err() != nil {
				yield(model.StreamEvent{Kind: model.TurnError, Err: ctx.Err()})
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Requests returns copies of the requests received so far.
func (s *ScriptedLLM) Requests() []model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Request(nil), s.requests...)
}

// Text builds a turn fragment of text deltas.
func Text(parts ...string) Turn {
	var t Turn
	for _, p := range parts {
		t = append(t, model.StreamEvent{Kind: model.TextDelta, Text: p})
	}
	return t
}

// ToolCall builds the opened/closed pair of one tool call.
func ToolCall(id, name string, input map[string]any) Turn {
	return Turn{
		{Kind: model.ToolCallOpened, ToolCall: &tool.Call{ID: id, Name: name}},
		{Kind: model.ToolCallClosed, ToolCall: &tool.Call{ID: id, Name: name, Input: input}},
	}
}

// Done terminates a turn successfully.
func Done() Turn {
	return Turn{{Kind: model.TurnDone, StopReason: "end_turn"}}
}

// Fail terminates a turn with err.
func Fail(err error) Turn {
	return Turn{{Kind: model.TurnError, Err: err}}
}

// Join concatenates turn fragments.
func Join(parts ...Turn) Turn {
	var t Turn
	for _, p := range parts {
		t = append(t, p...)
	}
	return t
}

// StaticExecutor answers every tool call from a fixed table keyed by tool
// name and records the calls it receives.
type StaticExecutor struct {
	mu      sync.Mutex
	Results map[string]string
	Errors  map[string]error
	Calls   []string
}

func (e *StaticExecutor) Execute(_ context.Context, name string, _ map[string]any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = append(e.Calls, name)
	if err, ok := e.Errors[name]; ok {
		return "", err
	}
	if res, ok := e.Results[name]; ok {
		return res, nil
	}
	return "", errors.New("unknown tool: " + name)
}

// TestCompany returns a listed subject with a DART code.
func TestCompany() company.Company {
	return company.Company{
		Name:      "Acme Industries",
		CorpRegNo: "1101110000001",
		CorpCode:  "00126380",
		BizRegNo:  "1248100998",
		CorpClass: "Y",
		Industry:  "Electronic components",
		CEO:       "Kim Minsu",
		Homepage:  "https://acme.example.com",
	}
}

// TestContext returns a context with a timeout bound to the test.
func TestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// Lines joins lines with newlines.
func Lines(lines ...string) string {
	return strings.Join(lines, "\n")
}
