package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/model"
	"github.com/kadirpekel/dossier/pkg/workflow"
)

func newSQLiteStore(t *testing.T) *SQL {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQL(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	return s
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	impls := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store { return newSQLiteStore(t) },
	}
	for name, newStore := range impls {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

const (
	subject = "1101110000001"
	general = string(workflow.General)
)

func TestConversation_UpsertReplacesInPlace(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		id1, err := s.UpsertConversation(ctx, &Conversation{
			SubjectKey:  subject,
			WorkflowKey: general,
			Messages:    []model.Message{model.UserText("start")},
		})
		require.NoError(t, err)

		id2, err := s.UpsertConversation(ctx, &Conversation{
			SubjectKey:  subject,
			WorkflowKey: general,
			Messages: []model.Message{
				model.UserText("start"),
				model.AssistantText("## Company Overview\nAcme"),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		got, err := s.GetConversation(ctx, subject, general)
		require.NoError(t, err)
		assert.Equal(t, id1, got.ID)
		require.Len(t, got.Messages, 2)
		assert.Equal(t, model.RoleAssistant, got.Messages[1].Role)
		assert.Equal(t, "## Company Overview\nAcme", got.Messages[1].Text())
	})
}

func TestConversation_ToolBlocksRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		msgs := []model.Message{
			model.UserText("start"),
			{Role: model.RoleAssistant, Content: []model.Block{
				{Type: model.BlockToolUse, ID: "toolu_1", Name: "search_google", Input: map[string]any{"query": "Acme"}},
			}},
			{Role: model.RoleUser, Content: []model.Block{
				model.ToolResultBlock("toolu_1", "tool execution error: boom", true),
			}},
		}
		_, err := s.UpsertConversation(ctx, &Conversation{SubjectKey: subject, WorkflowKey: general, Messages: msgs})
		require.NoError(t, err)

		got, err := s.GetConversation(ctx, subject, general)
		require.NoError(t, err)
		require.Len(t, got.Messages, 3)
		uses := got.Messages[1].ToolUses()
		require.Len(t, uses, 1)
		assert.Equal(t, "Acme", uses[0].Input["query"])
		assert.True(t, got.Messages[2].Content[0].IsError)
		assert.Equal(t, "toolu_1", got.Messages[2].Content[0].ToolUseID)
	})
}

func TestConversation_GetMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetConversation(context.Background(), "nope", general)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestConversation_DeleteCascadesToSections(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id, err := s.UpsertConversation(ctx, &Conversation{SubjectKey: subject, WorkflowKey: general})
		require.NoError(t, err)
		require.NoError(t, s.InitSections(ctx, id, subject, general))

		// A second pair stays untouched.
		_, err = s.UpsertSection(ctx, SectionInput{SubjectKey: subject, WorkflowKey: "finance", SectionKey: "key_changes", Title: "Key Changes", Content: "x"})
		require.NoError(t, err)

		require.NoError(t, s.DeleteConversation(ctx, subject, general))

		_, err = s.GetConversation(ctx, subject, general)
		assert.ErrorIs(t, err, ErrNotFound)
		secs, err := s.ListSections(ctx, subject, general)
		require.NoError(t, err)
		assert.Empty(t, secs)

		other, err := s.ListSections(ctx, subject, "finance")
		require.NoError(t, err)
		assert.Len(t, other, 1)
	})
}

func TestSection_UpsertIncrementsVersion(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		in := SectionInput{
			ConversationID: "c1",
			SubjectKey:     subject,
			WorkflowKey:    general,
			SectionKey:     "company_overview",
			Title:          "Company Overview",
		}

		for want := 1; want <= 3; want++ {
			in.Content = fmt.Sprintf("v%d", want)
			_, err := s.UpsertSection(ctx, in)
			require.NoError(t, err)

			got, err := s.GetSection(ctx, subject, general, "company_overview")
			require.NoError(t, err)
			assert.Equal(t, want, got.Version)
			assert.Equal(t, in.Content, got.Content)
			assert.Equal(t, StatusDone, got.Status)
		}
	})
}

func TestSection_InitSeedsWithoutOverwriting(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.UpsertSection(ctx, SectionInput{
			SubjectKey:  subject,
			WorkflowKey: general,
			SectionKey:  "ax_moves",
			Title:       "Recent AX Moves",
			Content:     "kept",
		})
		require.NoError(t, err)

		require.NoError(t, s.InitSections(ctx, "c1", subject, general))
		require.NoError(t, s.InitSections(ctx, "c1", subject, general))

		secs, err := s.ListSections(ctx, subject, general)
		require.NoError(t, err)
		require.Len(t, secs, 5)

		byKey := map[string]SectionRecord{}
		for _, r := range secs {
			byKey[r.SectionKey] = r
		}
		assert.Equal(t, "kept", byKey["ax_moves"].Content)
		assert.Equal(t, 1, byKey["ax_moves"].Version)

		overview := byKey["company_overview"]
		assert.Equal(t, 0, overview.Version)
		assert.Equal(t, StatusEmpty, overview.Status)
		assert.Equal(t, "Company Overview", overview.Title)
		assert.Empty(t, overview.Content)

		// Seeding reaches the first upsert at version 1.
		_, err = s.UpsertSection(ctx, SectionInput{SubjectKey: subject, WorkflowKey: general, SectionKey: "company_overview", Title: "Company Overview", Content: "Acme"})
		require.NoError(t, err)
		got, err := s.GetSection(ctx, subject, general, "company_overview")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Version)
	})
}

func TestSection_InitUnknownWorkflowIsNoop(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.InitSections(ctx, "c1", subject, "unknown"))
		secs, err := s.ListSections(ctx, subject, "unknown")
		require.NoError(t, err)
		assert.Empty(t, secs)
	})
}

func TestSection_SetStatus(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.InitSections(ctx, "c1", subject, general))

		require.NoError(t, s.SetSectionStatus(ctx, subject, general, "smalltalk", StatusRunning))
		got, err := s.GetSection(ctx, subject, general, "smalltalk")
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, got.Status)
		assert.Equal(t, 0, got.Version)

		assert.ErrorIs(t, s.SetSectionStatus(ctx, subject, general, "missing", StatusError), ErrNotFound)
		assert.Error(t, s.SetSectionStatus(ctx, subject, general, "smalltalk", Status("bogus")))
	})
}

func TestCompanies(t *testing.T) {
	seed := []company.Company{
		{Name: "Acme Industries", CorpRegNo: "1101110000001", CorpCode: "00126380", CorpClass: "Y"},
		{Name: "Acme Logistics", CorpRegNo: "1101110000002", CorpClass: "E"},
		{Name: "Acme Foods", CorpRegNo: "1101110000003", CorpCode: "00126381", CorpClass: "K"},
		{Name: "New Acme", CorpRegNo: "1101110000004", CorpClass: "Y"},
		{Name: "Globex", CorpRegNo: "1101110000005", CorpClass: "Y"},
	}

	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, c := range seed {
			require.NoError(t, s.UpsertCompany(ctx, c))
		}
		assert.Error(t, s.UpsertCompany(ctx, company.Company{Name: "No Number"}))

		t.Run("get by registration number", func(t *testing.T) {
			got, err := s.GetCompany(ctx, "1101110000003")
			require.NoError(t, err)
			assert.Equal(t, "Acme Foods", got.Name)

			_, err = s.GetCompany(ctx, "0000000000000")
			assert.ErrorIs(t, err, ErrNotFound)
		})

		t.Run("get by corp code", func(t *testing.T) {
			got, err := s.GetCompanyByCorpCode(ctx, "00126380")
			require.NoError(t, err)
			assert.Equal(t, "1101110000001", got.CorpRegNo)

			_, err = s.GetCompanyByCorpCode(ctx, "")
			assert.ErrorIs(t, err, ErrNotFound)
		})

		t.Run("upsert replaces", func(t *testing.T) {
			c := seed[4]
			c.CEO = "Hank Scorpio"
			require.NoError(t, s.UpsertCompany(ctx, c))
			got, err := s.GetCompany(ctx, c.CorpRegNo)
			require.NoError(t, err)
			assert.Equal(t, "Hank Scorpio", got.CEO)
		})

		t.Run("search tops up prefix with substring matches", func(t *testing.T) {
			got, err := s.SearchCompanies(ctx, "Acme", 10)
			require.NoError(t, err)

			var names []string
			for _, c := range got {
				names = append(names, c.Name)
			}
			assert.Equal(t, []string{"Acme Industries", "Acme Foods", "Acme Logistics", "New Acme"}, names)
		})

		t.Run("search respects limit", func(t *testing.T) {
			got, err := s.SearchCompanies(ctx, "Acme", 2)
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})

		t.Run("stats", func(t *testing.T) {
			stats, err := s.CompanyStats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 5, stats.Total)
			assert.Equal(t, 2, stats.WithCorpCode)
			assert.Equal(t, 3, stats.WithoutCorpCode())
			assert.Equal(t, map[string]int{"Y": 3, "K": 1, "E": 1}, stats.ByClass)
		})
	})
}

func TestCompanyStats_Empty(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		stats, err := s.CompanyStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Total)
		assert.Equal(t, 0, stats.WithCorpCode)
		assert.Empty(t, stats.ByClass)
	})
}

func TestPins(t *testing.T) {
	acme := company.Company{Name: "Acme Industries", CorpRegNo: "1101110000001", CorpCode: "00126380", CorpClass: "Y"}
	globex := company.Company{Name: "Globex", CorpRegNo: "1101110000005", CEO: "Hank Scorpio"}

	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		pins, err := s.ListPins(ctx)
		require.NoError(t, err)
		assert.Empty(t, pins)

		id, err := s.AddPin(ctx, acme)
		require.NoError(t, err)
		again, err := s.AddPin(ctx, acme)
		require.NoError(t, err)
		assert.Equal(t, id, again, "pinning twice keeps the first pin")

		_, err = s.AddPin(ctx, globex)
		require.NoError(t, err)
		_, err = s.AddPin(ctx, company.Company{Name: "No Number"})
		assert.Error(t, err)

		pins, err = s.ListPins(ctx)
		require.NoError(t, err)
		require.Len(t, pins, 2)
		assert.Equal(t, "Globex", pins[0].Company.Name, "most recent first")
		assert.Equal(t, "Hank Scorpio", pins[0].Company.CEO)
		assert.Equal(t, id, pins[1].ID)
		assert.False(t, pins[1].PinnedAt.IsZero())

		pinned, err := s.IsPinned(ctx, acme.CorpRegNo)
		require.NoError(t, err)
		assert.True(t, pinned)

		require.NoError(t, s.RemovePin(ctx, acme.CorpRegNo))
		require.NoError(t, s.RemovePin(ctx, acme.CorpRegNo))
		pinned, err = s.IsPinned(ctx, acme.CorpRegNo)
		require.NoError(t, err)
		assert.False(t, pinned)

		pins, err = s.ListPins(ctx)
		require.NoError(t, err)
		require.Len(t, pins, 1)
		assert.Equal(t, globex.CorpRegNo, pins[0].Company.CorpRegNo)

		assert.NoError(t, s.Ping(ctx))
	})
}

func TestPostgresPlaceholders(t *testing.T) {
	pg := &SQL{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.q("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQL{dialect: DialectSQLite}
	assert.Equal(t, "x = ?", lite.q("x = ?"))
}

func TestNewSQL_RejectsUnknownDialect(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQL(context.Background(), db, "oracle")
	assert.Error(t, err)
}
