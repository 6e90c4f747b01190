package section

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/workflow"
)

const generalReport = `Collected enough data, writing the report now.

## Company Overview
Acme makes sensors.

## Recent AX Moves
Launched an AI pilot.

## Recent Business Moves
Opened a plant.

## AX Sales Insights
Pitch predictive maintenance.

## Smalltalk Topics
The company baseball team.
`

func TestExtract_General(t *testing.T) {
	got := Extract(workflow.General, generalReport)

	assert.Equal(t, []string{"company_overview", "ax_moves", "biz_moves", "ax_insights", "smalltalk"}, got.Keys())

	overview, ok := got.Get("company_overview")
	require.True(t, ok)
	assert.Equal(t, "## Company Overview\nAcme makes sensors.", overview.Content)
	assert.Equal(t, "Company Overview", overview.Title)

	smalltalk, _ := got.Get("smalltalk")
	assert.Equal(t, "## Smalltalk Topics\nThe company baseball team.", smalltalk.Content)
	assert.NotContains(t, got.Map()["company_overview"], "writing the report")
}

func TestExtract_MatchRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "title is case and whitespace insensitive",
			text: "###   key   CHANGES\nrevenue up",
			want: map[string]string{"key_changes": "###   key   CHANGES\nrevenue up"},
		},
		{
			name: "key form matches",
			text: "## financial health\nsolid\n## ax investment\nmodest",
			want: map[string]string{
				"financial_health": "## financial health\nsolid",
				"ax_investment":    "## ax investment\nmodest",
			},
		},
		{
			name: "any order",
			text: "## Sales Considerations\nQ4 budget\n## Three-Year Financial Summary\n| y | r |",
			want: map[string]string{
				"sales_considerations": "## Sales Considerations\nQ4 budget",
				"financial_summary":    "## Three-Year Financial Summary\n| y | r |",
			},
		},
		{
			name: "header-less text",
			text: "just prose\nwithout sections",
			want: map[string]string{},
		},
		{
			name: "trailing whitespace trimmed",
			text: "## Key Changes\nmargin fell\n\n\n  ",
			want: map[string]string{"key_changes": "## Key Changes\nmargin fell"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(workflow.Finance, tt.text).Map())
		})
	}
}

func TestExtract_EmptyText(t *testing.T) {
	assert.Empty(t, Extract(workflow.General, ""))
	assert.Empty(t, Extract(workflow.ID("unknown"), "  \n"))
}

func TestExtract_UnknownWorkflow(t *testing.T) {
	got := Extract(workflow.ID("marketing"), "## Anything\nbody")
	assert.Equal(t, map[string]string{"full": "## Anything\nbody"}, got.Map())
}

func TestExtract_ExecutiveProfiles(t *testing.T) {
	text := "## Executive List\n| Name | Position |\n|---|---|\n| Kim Minsu | CEO |\n\n" +
		"## Kim Minsu Profile\nEngineer by training.\n\n" +
		"### Lee Jiyoung profile\nCFO since 2021.\n"

	got := Extract(workflow.Executives, text)

	assert.Equal(t, []string{"executive_list", "profile_0", "profile_1"}, got.Keys())

	p0, _ := got.Get("profile_0")
	assert.Equal(t, "Kim Minsu Profile", p0.Title)
	assert.Equal(t, "## Kim Minsu Profile\nEngineer by training.", p0.Content)

	p1, _ := got.Get("profile_1")
	assert.Equal(t, "Lee Jiyoung profile", p1.Title)
	assert.Equal(t, "### Lee Jiyoung profile\nCFO since 2021.", p1.Content)
}

func TestProfileName(t *testing.T) {
	assert.Equal(t, "Kim Minsu", ProfileName("Kim Minsu Profile"))
	assert.Equal(t, "Curation Panel", ProfileName("Curation Panel"))
}
