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
// Package research drives research runs end to end: it guards against
// concurrent runs of the same report, persists conversations and sections,
// and orchestrates the two-pass executive workflow.
package research

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/kadirpekel/dossier/pkg/agent"
	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/section"
	"github.com/kadirpekel/dossier/pkg/store"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

// Service runs research and follow-up chat against a store.
type Service struct {
	runner       *agent.Runner
	store        store.Store
	guard        *RunGuard
	orchestrator *PhaseOrchestrator
}

// NewService creates a Service. A nil decider lets every prompt time out.
func NewService(runner *agent.Runner, st store.Store, decider hitl.Decider, opts ...Option) *Service {
	if decider == nil {
		decider = hitl.Unattended()
	}
	return &Service{
		runner:       runner,
		store:        st,
		guard:        NewRunGuard(),
		orchestrator: NewPhaseOrchestrator(runner, st, decider, opts...),
	}
}

// Store returns the backing store.
func (s *Service) Store() store.Store {
	return s.store
}

// Running reports whether a run of the pair is in flight.
func (s *Service) Running(subjectKey string, wf workflow.ID) bool {
	return s.guard.Running(runKey(subjectKey, string(wf)))
}

// Research runs workflow wf for subject and persists the report sections.
// The executive workflow is delegated to the PhaseOrchestrator.
func (s *Service) Research(ctx context.Context, wf workflow.ID, subject company.Company) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		def, ok := workflow.Lookup(wf)
		if !ok {
			yield(abortedEvent("unknown workflow", fmt.Errorf("unknown workflow %q", wf)))
			return
		}
		release, err := s.guard.Acquire(runKey(subject.Key(), string(wf)))
		if err != nil {
			yield(abortedEvent(err.Error(), err))
			return
		}
		defer release()

		slog.Info("Research requested", "workflow", wf, "subject", subject.Name)
		if wf == workflow.Executives {
			for ev := range s.orchestrator.Run(ctx, subject) {
				if !yield(ev) {
					return
				}
			}
			return
		}
		s.standard(ctx, def, subject, yield)
	}
}

// standard runs a single-pass workflow.
func (s *Service) standard(ctx context.Context, def *workflow.Definition, subject company.Company, yield func(Event) bool) {
	subjectKey, wfKey := subject.Key(), string(def.ID)
	keys := make([]string, len(def.Sections))
	for i, spec := range def.Sections {
		keys[i] = spec.Key
	}

	conv, err := ensureConversation(ctx, s.store, subjectKey, wfKey)
	if err != nil {
		yield(abortedEvent("failed to open conversation", err))
		return
	}
	if err := s.store.InitSections(ctx, conv.ID, subjectKey, wfKey); err != nil {
		yield(abortedEvent("failed to initialize sections", err))
		return
	}
	setStatus(ctx, s.store, subjectKey, wfKey, store.StatusRunning, keys...)

	finished := false
	defer func() {
		if !finished {
			setStatus(context.WithoutCancel(ctx), s.store, subjectKey, wfKey, store.StatusError, keys...)
		}
	}()

	final, ok := forward(ctx, s.runner, agent.Input{Workflow: def.ID, Subject: subject}, yield)
	if !ok {
		return
	}
	if final.Kind != agent.EventDone {
		msg := final.Content
		if msg == "" {
			msg = "run ended without a result"
		}
		yield(abortedEvent(msg, final.Err))
		return
	}

	// Persist before the done event; the consumer may stop at any yield.
	finished = true
	pctx := context.WithoutCancel(ctx)
	w := reportWriter{st: s.store, convID: conv.ID, subjectKey: subjectKey, workflowKey: wfKey}
	extracted := section.Extract(def.ID, final.Content)
	saved, err := w.sections(pctx, extracted, keys)
	if err != nil {
		yield(abortedEvent(err.Error(), err))
		return
	}
	conv.Messages = final.Messages
	if err := w.conversation(pctx, conv); err != nil {
		yield(abortedEvent(err.Error(), err))
		return
	}
	slog.Info("Research saved", "workflow", def.ID, "subject", subject.Name, "sections", len(saved))

	if !yield(agentEvent(final)) {
		return
	}
	for _, key := range saved {
		if !yield(Event{Kind: EventSectionSaved, Section: key}) {
			return
		}
	}
	yield(Event{Kind: EventCompleted, Message: fmt.Sprintf("saved %d sections", len(saved))})
}

// forward relays the runner's events and holds back the terminal one, which
// is returned. ok is false when the consumer stopped reading.
func forward(ctx context.Context, runner *agent.Runner, in agent.Input, yield func(Event) bool) (final agent.Event, ok bool) {
	for ev := range runner.Run(ctx, in) {
		if ev.Kind == agent.EventDone {
			final = ev
			continue
		}
		if !yield(agentEvent(ev)) {
			return agent.Event{}, false
		}
		if ev.Kind == agent.EventError {
			final = ev
		}
	}
	return final, true
}

// ErrEmptyMessage is returned for a blank chat message.
var ErrEmptyMessage = errors.New("message is empty")

// Chat continues the stored conversation of the pair with text. Sections are
// never rewritten by a chat turn.
func (s *Service) Chat(ctx context.Context, wf workflow.ID, subject company.Company, text string) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		text = strings.TrimSpace(text)
		if text == "" {
			yield(abortedEvent(ErrEmptyMessage.Error(), ErrEmptyMessage))
			return
		}
		if _, ok := workflow.Lookup(wf); !ok {
			yield(abortedEvent("unknown workflow", fmt.Errorf("unknown workflow %q", wf)))
			return
		}
		subjectKey, wfKey := subject.Key(), string(wf)
		release, err := s.guard.Acquire(runKey(subjectKey, wfKey))
		if err != nil {
			yield(abortedEvent(err.Error(), err))
			return
		}
		defer release()

		conv, err := ensureConversation(ctx, s.store, subjectKey, wfKey)
		if err != nil {
			yield(abortedEvent("failed to open conversation", err))
			return
		}
		if len(conv.Messages) == 0 {
			text = agent.SubjectContext(subject) + "\n\n" + text
		}

		in := agent.Input{Workflow: wf, Subject: subject, Messages: conv.Messages, UserInput: text}
		final, ok := forward(ctx, s.runner, in, yield)
		if !ok {
			return
		}
		if final.Kind != agent.EventDone {
			yield(abortedEvent(final.Content, final.Err))
			return
		}

		conv.Messages = final.Messages
		w := reportWriter{st: s.store, convID: conv.ID, subjectKey: subjectKey, workflowKey: wfKey}
		if err := w.conversation(context.WithoutCancel(ctx), conv); err != nil {
			yield(abortedEvent(err.Error(), err))
			return
		}
		if !yield(agentEvent(final)) {
			return
		}
		yield(Event{Kind: EventCompleted})
	}
}

// Sections lists the persisted sections of the pair.
func (s *Service) Sections(ctx context.Context, subjectKey string, wf workflow.ID) ([]store.SectionRecord, error) {
	return s.store.ListSections(ctx, subjectKey, string(wf))
}

// Reset deletes the conversation of the pair together with its sections.
func (s *Service) Reset(ctx context.Context, subjectKey string, wf workflow.ID) error {
	release, err := s.guard.Acquire(runKey(subjectKey, string(wf)))
	if err != nil {
		return err
	}
	defer release()
	return s.store.DeleteConversation(ctx, subjectKey, string(wf))
}
