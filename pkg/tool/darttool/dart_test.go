package darttool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "key", BaseURL: srv.URL}, nil)
}

func TestFinance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fnlttSinglAcnt.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("crtfc_key"))
		assert.Equal(t, "00126380", q.Get("corp_code"))
		assert.Equal(t, "2024", q.Get("bsns_year"))
		assert.Equal(t, ReportAnnual, q.Get("reprt_code"))
		assert.Equal(t, "CFS", q.Get("fs_div"))
		_, _ = w.Write([]byte(`{"status":"000","message":"OK","list":[
			{"account_nm":"Revenue","thstrm_amount":"1,000","frmtrm_amount":"900"}]}`))
	})

	items, err := c.Finance(context.Background(), "00126380", "2024", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Revenue", items[0].AccountName)
	assert.Equal(t, "1,000", items[0].CurrentTermAmount)
}

func TestExecutives(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exctvSttus.json", r.URL.Path)
		assert.Equal(t, ReportHalf, r.URL.Query().Get("reprt_code"))
		_, _ = w.Write([]byte(`{"status":"000","list":[{"nm":"Kim Minsu","ofcps":"CEO"},{"nm":"Lee Jiwon","ofcps":"CTO"}]}`))
	})

	execs, err := c.Executives(context.Background(), "00126380", "2024", ReportHalf)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	assert.Equal(t, "CTO", execs[1].Position)
}

func TestStatusHandling(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		apiErr  bool
	}{
		{name: "no data", body: `{"status":"013","message":"no data"}`, wantErr: ErrNoData},
		{name: "invalid key", body: `{"status":"010","message":"unregistered key"}`, apiErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Finance(context.Background(), "00126380", "2024", "")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.apiErr {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "010", apiErr.Status)
			}
		})
	}
}

func TestNotConfigured(t *testing.T) {
	_, err := New(Config{}, nil).Executives(context.Background(), "00126380", "2024", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPing(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/company.json", r.URL.Path)
			assert.Equal(t, "00126380", r.URL.Query().Get("corp_code"))
			_, _ = w.Write([]byte(`{"status":"000","message":"OK","corp_name":"Acme"}`))
		})
		assert.NoError(t, c.Ping(context.Background()))
	})

	t.Run("rejected key", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"010","message":"unregistered key"}`))
		})
		var apiErr *APIError
		require.ErrorAs(t, c.Ping(context.Background()), &apiErr)
		assert.Equal(t, "ping", apiErr.Op)
	})

	t.Run("not configured", func(t *testing.T) {
		assert.ErrorIs(t, New(Config{}, nil).Ping(context.Background()), ErrNotConfigured)
	})
}
