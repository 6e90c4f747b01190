package tool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	for _, id := range All() {
		got, ok := ParseID(string(id))
		assert.True(t, ok, id)
		assert.Equal(t, id, got)
	}

	_, ok := ParseID("delete_everything")
	assert.False(t, ok)
}

func TestDescribe(t *testing.T) {
	def, err := Describe(FetchDARTFinance)
	require.NoError(t, err)

	assert.Equal(t, "fetch_dart_finance", def.Name)
	assert.NotEmpty(t, def.Description)
	assert.Equal(t, "object", def.Parameters["type"])

	props, ok := def.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "corp_code")
	assert.Contains(t, props, "bsns_year")
	assert.Contains(t, props, "reprt_code")
	assert.ElementsMatch(t, []any{"corp_code", "bsns_year"}, def.Parameters["required"])

	_, err = Describe(ID("nope"))
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDecode(t *testing.T) {
	t.Run("weakly typed", func(t *testing.T) {
		args, err := Decode[SearchArgs](map[string]any{"query": "ACME AI", "num": "5"})
		require.NoError(t, err)
		assert.Equal(t, "ACME AI", args.Query)
		assert.Equal(t, 5, args.Num)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := Decode[DisclosureArgs](map[string]any{"corp_code": "00126380"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bsns_year")
	})

	t.Run("optional only", func(t *testing.T) {
		args, err := Decode[CompanyInfoArgs](map[string]any{})
		require.NoError(t, err)
		assert.Empty(t, args.JurirNo)
	})
}

func TestRender(t *testing.T) {
	type outline struct {
		Name string `json:"name"`
	}
	var missing *outline

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, NoData},
		{"typed nil", missing, NoData},
		{"string", "plain", "plain"},
		{"struct", outline{Name: "A&B"}, "{\n  \"name\": \"A&B\"\n}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncator_CharacterFallback(t *testing.T) {
	tr := &Truncator{maxTokens: 2}

	assert.Equal(t, "short", tr.Truncate("short"))

	out := tr.Truncate(strings.Repeat("x", 20))
	assert.True(t, strings.HasPrefix(out, strings.Repeat("x", 8)))
	assert.True(t, strings.HasSuffix(out, truncatedMarker))
}

func TestTruncator_Disabled(t *testing.T) {
	var tr *Truncator
	assert.Equal(t, "abc", tr.Truncate("abc"))
	assert.Equal(t, "abc", NewTruncator(0).Truncate("abc"))
}

func TestLabel(t *testing.T) {
	label, ok := Label("search_google")
	assert.True(t, ok)
	assert.NotEmpty(t, label)

	_, ok = Label("mystery")
	assert.False(t, ok)
}
