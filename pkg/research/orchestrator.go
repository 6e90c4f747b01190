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
package research

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/kadirpekel/dossier/pkg/agent"
	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/section"
	"github.com/kadirpekel/dossier/pkg/store"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

// Curation choices offered once executives were found.
const (
	ChoiceAll    = "all"
	ChoiceManual = "manual"
)

// ChoiceTop returns the option that selects the first n executives.
func ChoiceTop(n int) string {
	return fmt.Sprintf("top%d", n)
}

// PhaseOrchestrator runs the executive workflow in two passes with a human
// curation step between them: the first pass lists the executives, the
// second profiles the selected ones.
type PhaseOrchestrator struct {
	runner  *agent.Runner
	store   store.Store
	decider hitl.Decider
	cfg     settings
}

// NewPhaseOrchestrator creates an orchestrator.
func NewPhaseOrchestrator(runner *agent.Runner, st store.Store, decider hitl.Decider, opts ...Option) *PhaseOrchestrator {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &PhaseOrchestrator{runner: runner, store: st, decider: decider, cfg: cfg}
}

// Run executes both passes for subject. The stream ends with EventCompleted
// or EventAborted.
func (o *PhaseOrchestrator) Run(ctx context.Context, subject company.Company) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		r := &execRun{
			o:          o,
			ctx:        ctx,
			subject:    subject,
			subjectKey: subject.Key(),
			yield:      yield,
		}
		r.run()
	}
}

// execRun is the state of one orchestrated run.
type execRun struct {
	o          *PhaseOrchestrator
	ctx        context.Context
	subject    company.Company
	subjectKey string
	convID     string
	machine    phaseMachine
	yield      func(Event) bool
	stopped    bool
}

const executivesKey = string(workflow.Executives)

func (r *execRun) emit(ev Event) bool {
	if r.stopped {
		return false
	}
	if !r.yield(ev) {
		r.stopped = true
	}
	return !r.stopped
}

func (r *execRun) advance(to Phase) bool {
	if err := r.machine.advance(to); err != nil {
		slog.Error("Phase transition rejected", "error", err)
		r.abort("internal phase error", err)
		return false
	}
	return r.emit(phaseEvent(to))
}

func (r *execRun) abort(msg string, err error) {
	if !r.machine.current.Terminal() {
		r.machine.current = PhaseAborted
	}
	slog.Warn("Executive research aborted", "subject", r.subject.Name, "reason", msg, "error", err)
	r.emit(abortedEvent(msg, err))
}

func (r *execRun) run() {
	conv, err := ensureConversation(r.ctx, r.o.store, r.subjectKey, executivesKey)
	if err != nil {
		r.abort("failed to open conversation", err)
		return
	}
	r.convID = conv.ID
	if err := r.o.store.InitSections(r.ctx, r.convID, r.subjectKey, executivesKey); err != nil {
		r.abort("failed to initialize sections", err)
		return
	}

	if !r.emit(phaseEvent(PhaseCollectingList)) {
		return
	}
	listText, messages, ok := r.collectList()
	if !ok {
		return
	}

	if !r.advance(PhaseAwaitingSelection) {
		return
	}
	names := ParseNames(listText)
	selected, ok := r.selectTargets(names, listText)
	if !ok {
		return
	}
	if len(selected) == 0 {
		r.abort("no profiling targets selected; research stopped before profiling", nil)
		return
	}
	if !r.emit(Event{Kind: EventSelection, Names: selected}) {
		return
	}

	if !r.advance(PhaseProfiling) {
		return
	}
	if !r.profile(messages, selected, len(names)) {
		return
	}

	if r.advance(PhaseDone) {
		r.emit(Event{Kind: EventCompleted, Message: fmt.Sprintf("profiled %d executives", len(selected))})
	}
}

// collectList runs the first pass and returns the executive list text, which
// falls back to the whole response when no list section was produced.
func (r *execRun) collectList() (string, []model.Message, bool) {
	st := r.o.store
	setStatus(r.ctx, st, r.subjectKey, executivesKey, store.StatusRunning, workflow.SectionExecutiveList)

	done, ok := r.pass(agent.Input{
		Workflow:  workflow.Executives,
		Subject:   r.subject,
		UserInput: listInstruction(r.subject),
	})
	if !ok {
		setStatus(context.WithoutCancel(r.ctx), st, r.subjectKey, executivesKey, store.StatusError, workflow.SectionExecutiveList)
		return "", nil, false
	}

	listText := done.Content
	var secs section.Sections
	sec, found := section.Extract(workflow.Executives, done.Content).Get(workflow.SectionExecutiveList)
	if found && strings.TrimSpace(sec.Content) != "" {
		listText = sec.Content
		secs = section.Sections{sec}
	}
	if !r.persist(done, secs, workflow.SectionExecutiveList) {
		return "", nil, false
	}
	return listText, done.Messages, true
}

// selectTargets asks which executives to profile.
func (r *execRun) selectTargets(names []string, listText string) ([]string, bool) {
	if len(names) == 0 {
		d, ok := r.ask(hitl.Prompt{
			Kind:     hitl.KindText,
			Question: "No executives could be read from the list. Enter the names to profile, separated by commas.",
		})
		if !ok {
			return nil, false
		}
		if d.TimedOut {
			return []string{strings.TrimSpace(listText)}, true
		}
		return SplitSelection(d.Value), true
	}

	topN := min(r.o.cfg.topN, len(names))
	top := ChoiceTop(r.o.cfg.topN)
	d, ok := r.ask(hitl.Prompt{
		Kind: hitl.KindChoice,
		Question: fmt.Sprintf("Found %d executives: %s. Profile all of them, the first %d, or choose manually?",
			len(names), strings.Join(names, ", "), topN),
		Options: []string{ChoiceAll, top, ChoiceManual},
	})
	if !ok {
		return nil, false
	}

	switch {
	case d.TimedOut:
		return names, true
	case d.Value == top:
		return names[:topN], true
	case d.Value == ChoiceManual:
		d, ok := r.ask(hitl.Prompt{
			Kind:     hitl.KindText,
			Question: "Enter the names to profile, separated by commas: " + strings.Join(names, ", "),
		})
		if !ok {
			return nil, false
		}
		if d.TimedOut {
			return names, true
		}
		return SplitSelection(d.Value), true
	default:
		return names, true
	}
}

// ask announces the prompt, then waits for the decision. A timed-out
// decision is returned as such; only a decider failure aborts.
func (r *execRun) ask(p hitl.Prompt) (hitl.Decision, bool) {
	p.EnsureID()
	p.Subject = r.subject.Name
	p.Timeout = r.o.cfg.decisionTimeout
	if !r.emit(Event{Kind: EventPrompt, Prompt: &p}) {
		return hitl.Decision{}, false
	}

	d, err := r.o.decider.Decide(r.ctx, p)
	if err != nil {
		r.o.cfg.metrics.RecordDecision(r.ctx, string(p.Kind), "error")
		r.abort("decision failed", err)
		return hitl.Decision{}, false
	}

	outcome := "answered"
	switch {
	case d.TimedOut:
		outcome = "timeout"
	case p.Kind == hitl.KindChoice:
		outcome = d.Value
	}
	r.o.cfg.metrics.RecordDecision(r.ctx, string(p.Kind), outcome)
	slog.Info("Decision received", "prompt", p.ID, "kind", p.Kind, "outcome", outcome)
	return d, true
}

// profile runs the second pass and persists its sections.
func (r *execRun) profile(messages []model.Message, selected []string, total int) bool {
	st := r.o.store
	setStatus(r.ctx, st, r.subjectKey, executivesKey, store.StatusRunning, workflow.SectionCurationPanel)

	done, ok := r.pass(agent.Input{
		Workflow:  workflow.Executives,
		Subject:   r.subject,
		Messages:  messages,
		UserInput: profileInstruction(selected),
	})
	if !ok {
		setStatus(context.WithoutCancel(r.ctx), st, r.subjectKey, executivesKey, store.StatusError, workflow.SectionCurationPanel)
		return false
	}

	def, _ := workflow.Lookup(workflow.Executives)
	secs := section.Sections{{
		Key:     workflow.SectionCurationPanel,
		Title:   def.Title(workflow.SectionCurationPanel),
		Content: curationContent(selected, total),
	}}
	for _, sec := range section.Extract(workflow.Executives, done.Content) {
		if strings.HasPrefix(sec.Key, workflow.ProfilePrefix) {
			secs = append(secs, sec)
		}
	}
	return r.persist(done, secs, workflow.SectionCurationPanel)
}

// pass forwards one runner pass and returns its done event, which is not
// emitted yet.
func (r *execRun) pass(in agent.Input) (agent.Event, bool) {
	final, ok := forward(r.ctx, r.o.runner, in, r.emit)
	if !ok {
		return agent.Event{}, false
	}
	switch final.Kind {
	case agent.EventDone:
		return final, true
	case agent.EventError:
		r.abort(final.Content, final.Err)
	default:
		r.abort("run ended without a result", nil)
	}
	return agent.Event{}, false
}

// persist writes the sections and messages of a finished pass, then emits
// its done event and the saved sections.
func (r *execRun) persist(done agent.Event, secs section.Sections, pending ...string) bool {
	ctx := context.WithoutCancel(r.ctx)
	w := reportWriter{st: r.o.store, convID: r.convID, subjectKey: r.subjectKey, workflowKey: executivesKey}
	saved, err := w.sections(ctx, secs, pending)
	if err != nil {
		r.abort(err.Error(), err)
		return false
	}
	conv := &store.Conversation{
		ID:          r.convID,
		SubjectKey:  r.subjectKey,
		WorkflowKey: executivesKey,
		Messages:    done.Messages,
	}
	if err := w.conversation(ctx, conv); err != nil {
		r.abort(err.Error(), err)
		return false
	}

	if !r.emit(agentEvent(done)) {
		return false
	}
	for _, key := range saved {
		if !r.emit(Event{Kind: EventSectionSaved, Section: key}) {
			return false
		}
	}
	return true
}

func listInstruction(c company.Company) string {
	return agent.SubjectContext(c) + "\n\n" +
		"Run only step 1 of the executive analysis for the company above. Collect the current executives " +
		"and write the \"## Executive List\" section as a markdown table whose first column is the " +
		"executive's name. Stop after the table and do not start profiling yet."
}

func profileInstruction(names []string) string {
	return fmt.Sprintf(
		"Profile the following %d executives selected from the list: %s.\n\n"+
			"Write one \"## <name> Profile\" section per person covering basic information, surface "+
			"information, deep information, rapport points, hypotheses and a meeting briefing.",
		len(names), strings.Join(names, ", "),
	)
}

func curationContent(selected []string, total int) string {
	var b strings.Builder
	b.WriteString("## Curation Panel\n\n")
	b.WriteString("**Profiling targets**: " + strings.Join(selected, ", ") + "\n\n")
	switch {
	case total == 0:
		b.WriteString("**Selected manually** (no names could be read from the executive list)")
	case len(selected) >= total:
		fmt.Fprintf(&b, "**Selected %d of %d** (full list)", len(selected), total)
	default:
		fmt.Fprintf(&b, "**Selected %d of %d** (subset)", len(selected), total)
	}
	return b.String()
}
