package research

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/agent"
	"github.com/kadirpekel/dossier/pkg/hitl"
	"github.com/kadirpekel/dossier/pkg/store"
	"github.com/kadirpekel/dossier/pkg/testutils"
	"github.com/kadirpekel/dossier/pkg/toolloop"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

const subjectKey = "1101110000001"

var generalReport = testutils.Lines(
	"Preamble that belongs to no section.",
	"## Company Overview",
	"Acme makes electronic components.",
	"## Smalltalk Topics",
	"The new plant opening.",
)

var executiveList = testutils.Lines(
	"## Executive List",
	"| Name | Position |",
	"|---|---|",
	"| Kim Minsu | CEO |",
	"| Lee Jiwon | CFO |",
	"| Park Sora | CTO |",
	"| Choi Yuna | COO |",
)

var profiles = testutils.Lines(
	"## Kim Minsu Profile",
	"Founder, engineer by training.",
	"## Lee Jiwon Profile",
	"Former investment banker.",
)

func reply(text string) testutils.Turn {
	return testutils.Join(testutils.Text(text), testutils.Done())
}

func newService(t *testing.T, decider hitl.Decider, turns ...testutils.Turn) (*Service, *testutils.ScriptedLLM, *store.Memory) {
	t.Helper()
	llm := testutils.NewScriptedLLM(turns...)
	st := store.NewMemory()
	runner := agent.NewRunner(toolloop.New(llm, &testutils.StaticExecutor{}))
	return NewService(runner, st, decider, WithDecisionTimeout(time.Second)), llm, st
}

func collect(seq func(func(Event) bool)) []Event {
	var events []Event
	for ev := range seq {
		events = append(events, ev)
	}
	return events
}

func last(events []Event) Event {
	return events[len(events)-1]
}

func kinds(events []Event, kind EventKind) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func sectionByKey(t *testing.T, st store.Store, wf workflow.ID, key string) *store.SectionRecord {
	t.Helper()
	rec, err := st.GetSection(context.Background(), subjectKey, string(wf), key)
	require.NoError(t, err)
	return rec
}

func TestResearch_PersistsSections(t *testing.T) {
	svc, _, st := newService(t, nil, reply(generalReport))
	ctx := testutils.TestContext(t, 5*time.Second)

	events := collect(svc.Research(ctx, workflow.General, testutils.TestCompany()))
	require.Equal(t, EventCompleted, last(events).Kind)
	assert.Len(t, kinds(events, EventSectionSaved), 2)

	overview := sectionByKey(t, st, workflow.General, "company_overview")
	assert.Equal(t, store.StatusDone, overview.Status)
	assert.Equal(t, 1, overview.Version)
	assert.Equal(t, "Company Overview", overview.Title)
	assert.NotContains(t, overview.Content, "Preamble")

	untouched := sectionByKey(t, st, workflow.General, "ax_moves")
	assert.Equal(t, store.StatusEmpty, untouched.Status)
	assert.Equal(t, 0, untouched.Version)

	conv, err := st.GetConversation(ctx, subjectKey, string(workflow.General))
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
	assert.False(t, svc.Running(subjectKey, workflow.General))
}

func TestResearch_RunErrorMarksSections(t *testing.T) {
	svc, _, st := newService(t, nil, testutils.Fail(errors.New("overloaded")))
	ctx := testutils.TestContext(t, 5*time.Second)

	events := collect(svc.Research(ctx, workflow.Finance, testutils.TestCompany()))
	end := last(events)
	require.Equal(t, EventAborted, end.Kind)
	assert.Contains(t, end.Message, "overloaded")

	rec := sectionByKey(t, st, workflow.Finance, "financial_summary")
	assert.Equal(t, store.StatusError, rec.Status)
	assert.Equal(t, 0, rec.Version)

	conv, err := st.GetConversation(ctx, subjectKey, string(workflow.Finance))
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestResearch_StoppedConsumerKeepsReportWhole(t *testing.T) {
	svc, _, st := newService(t, nil, reply(generalReport))
	ctx := testutils.TestContext(t, 5*time.Second)

	for ev := range svc.Research(ctx, workflow.General, testutils.TestCompany()) {
		if ev.Kind == EventSectionSaved {
			break
		}
	}

	for _, key := range []string{"company_overview", "smalltalk"} {
		rec := sectionByKey(t, st, workflow.General, key)
		assert.Equal(t, store.StatusDone, rec.Status, key)
		assert.Equal(t, 1, rec.Version, key)
	}
	assert.Equal(t, store.StatusEmpty, sectionByKey(t, st, workflow.General, "ax_moves").Status)

	conv, err := st.GetConversation(ctx, subjectKey, string(workflow.General))
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
	assert.False(t, svc.Running(subjectKey, workflow.General))
}

func TestResearch_DoneFollowsPersistence(t *testing.T) {
	svc, _, st := newService(t, nil, reply(generalReport))
	ctx := testutils.TestContext(t, 5*time.Second)

	for ev := range svc.Research(ctx, workflow.General, testutils.TestCompany()) {
		if ev.Kind == EventAgent && ev.Agent.Kind == agent.EventDone {
			conv, err := st.GetConversation(ctx, subjectKey, string(workflow.General))
			require.NoError(t, err)
			assert.Len(t, conv.Messages, 2)
			assert.Equal(t, 1, sectionByKey(t, st, workflow.General, "smalltalk").Version)
			break
		}
	}
}

type failingSections struct {
	*store.Memory
	failKey string
}

func (f *failingSections) UpsertSection(ctx context.Context, in store.SectionInput) (string, error) {
	if in.SectionKey == f.failKey {
		return "", errors.New("disk full")
	}
	return f.Memory.UpsertSection(ctx, in)
}

func TestResearch_SaveFailureMarksOnlyUnsaved(t *testing.T) {
	st := &failingSections{Memory: store.NewMemory(), failKey: "smalltalk"}
	runner := agent.NewRunner(toolloop.New(testutils.NewScriptedLLM(reply(generalReport)), &testutils.StaticExecutor{}))
	svc := NewService(runner, st, nil)
	ctx := testutils.TestContext(t, 5*time.Second)

	events := collect(svc.Research(ctx, workflow.General, testutils.TestCompany()))
	end := last(events)
	require.Equal(t, EventAborted, end.Kind)
	assert.Contains(t, end.Message, "smalltalk")
	assert.Empty(t, kinds(events, EventSectionSaved))

	overview := sectionByKey(t, st, workflow.General, "company_overview")
	assert.Equal(t, store.StatusDone, overview.Status)
	assert.Equal(t, 1, overview.Version)
	for _, key := range []string{"smalltalk", "ax_moves"} {
		assert.Equal(t, store.StatusError, sectionByKey(t, st, workflow.General, key).Status, key)
	}

	conv, err := st.GetConversation(ctx, subjectKey, string(workflow.General))
	require.NoError(t, err)
	assert.Empty(t, conv.Messages)
}

func TestResearch_AlreadyRunning(t *testing.T) {
	svc, llm, _ := newService(t, nil)
	release, err := svc.guard.Acquire(runKey(subjectKey, string(workflow.General)))
	require.NoError(t, err)
	defer release()

	events := collect(svc.Research(context.Background(), workflow.General, testutils.TestCompany()))
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, ErrAlreadyRunning)
	assert.Empty(t, llm.Requests())
}

func TestChat_ContinuesConversation(t *testing.T) {
	svc, llm, st := newService(t, nil, reply(generalReport), reply("The CEO founded the company in 2001."))
	ctx := testutils.TestContext(t, 5*time.Second)

	collect(svc.Research(ctx, workflow.General, testutils.TestCompany()))
	events := collect(svc.Chat(ctx, workflow.General, testutils.TestCompany(), "Who founded it?"))
	require.Equal(t, EventCompleted, last(events).Kind)

	reqs := llm.Requests()
	require.Len(t, reqs, 2)
	require.Len(t, reqs[1].Messages, 3)
	assert.Equal(t, "Who founded it?", reqs[1].Messages[2].Text())

	conv, err := st.GetConversation(ctx, subjectKey, string(workflow.General))
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)

	overview := sectionByKey(t, st, workflow.General, "company_overview")
	assert.Equal(t, 1, overview.Version, "chat never rewrites sections")
}

func TestChat_WithoutHistoryCarriesSubject(t *testing.T) {
	svc, llm, _ := newService(t, nil, reply("Sure."))

	collect(svc.Chat(context.Background(), workflow.Finance, testutils.TestCompany(), "How is revenue trending?"))
	first := llm.Requests()[0].Messages[0].Text()
	assert.Contains(t, first, "## Target company")
	assert.True(t, strings.HasSuffix(first, "How is revenue trending?"))

	events := collect(svc.Chat(context.Background(), workflow.Finance, testutils.TestCompany(), "  "))
	assert.ErrorIs(t, last(events).Err, ErrEmptyMessage)
}

func TestReset(t *testing.T) {
	svc, _, st := newService(t, nil, reply(generalReport))
	ctx := context.Background()
	collect(svc.Research(ctx, workflow.General, testutils.TestCompany()))

	require.NoError(t, svc.Reset(ctx, subjectKey, workflow.General))
	recs, err := svc.Sections(ctx, subjectKey, workflow.General)
	require.NoError(t, err)
	assert.Empty(t, recs)
	_, err = st.GetConversation(ctx, subjectKey, string(workflow.General))
	assert.ErrorIs(t, err, store.ErrNotFound)
}
