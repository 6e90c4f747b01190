package admin

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/company"
	"github.com/kadirpekel/dossier/pkg/config"
	"github.com/kadirpekel/dossier/pkg/store"
)

func TestKeyStatuses_RequiredMatchMissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{name: "none set"},
		{name: "llm only", cfg: config.Config{LLM: config.LLMConfig{APIKey: "sk"}}},
		{name: "all required", cfg: func() config.Config {
			var c config.Config
			c.LLM.APIKey = "sk"
			c.Providers.Search.APIKey = "serper"
			c.Providers.DART.APIKey = "dart"
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var missing []string
			for _, k := range KeyStatuses(&tt.cfg) {
				if k.Required && !k.Configured {
					missing = append(missing, k.Env)
				}
			}
			assert.ElementsMatch(t, tt.cfg.MissingCredentials(), missing)
		})
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	for _, c := range []company.Company{
		{Name: "삼성전자", CorpRegNo: "1301110006246", CorpCode: "00126380", CorpClass: "Y"},
		{Name: "작은회사", CorpRegNo: "1101110000001", CorpClass: "E"},
	} {
		require.NoError(t, st.UpsertCompany(ctx, c))
	}
	_, err := st.AddPin(ctx, company.Company{Name: "삼성전자", CorpRegNo: "1301110006246"})
	require.NoError(t, err)

	keys := []KeyStatus{
		{Env: config.EnvDARTKey, Configured: true, Required: true},
		{Env: config.EnvSerperKey, Required: true},
		{Env: config.EnvFSCKey},
	}
	pinged := false
	in := New(st, keys, WithChecks(Check{Name: "DART", Ping: func(context.Context) error {
		pinged = true
		return nil
	}}))

	r, err := in.Status(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Companies.Total)
	assert.Equal(t, 1, r.Companies.WithCorpCode)
	assert.Equal(t, 1, r.Pins)
	assert.Equal(t, []string{config.EnvSerperKey}, r.Missing)
	assert.Empty(t, r.Pings)
	assert.False(t, pinged)

	r, err = in.Status(ctx, true)
	require.NoError(t, err)
	require.Len(t, r.Pings, 2)
	assert.Equal(t, "Database", r.Pings[0].Name)
	assert.True(t, pinged)
}

func TestPing_KeepsOrderAndTruncates(t *testing.T) {
	long := strings.Repeat("x", 300)
	in := New(store.NewMemory(), nil, WithChecks(
		Check{Name: "slow", Ping: func(ctx context.Context) error {
			select {
			case <-time.After(20 * time.Millisecond):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}},
		Check{Name: "broken", Ping: func(context.Context) error { return errors.New(long) }},
		Check{Name: "stuck", Ping: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	), WithPingTimeout(50*time.Millisecond))

	results := in.Ping(context.Background())
	require.Len(t, results, 4)

	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"Database", "slow", "broken", "stuck"}, names)

	assert.True(t, results[0].OK)
	assert.True(t, results[1].OK)
	assert.Equal(t, "ok", results[1].Message)
	assert.False(t, results[2].OK)
	assert.Len(t, results[2].Message, maxMessage)
	assert.False(t, results[3].OK)
	assert.Contains(t, results[3].Message, "deadline exceeded")
}
