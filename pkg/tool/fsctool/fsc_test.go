package fsctool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func body(code string, total any, item any) string {
	data, _ := json.Marshal(map[string]any{
		"response": map[string]any{
			"header": map[string]any{"resultCode": code, "resultMsg": "msg"},
			"body": map[string]any{
				"totalCount": total,
				"items":      map[string]any{"item": item},
			},
		},
	})
	return string(data)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{ServiceKey: "key", FinanceURL: srv.URL, CorpURL: srv.URL}, nil)
}

func TestSummary_KeepsNewestYear(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getSummFinaStat_V2", r.URL.Path)
		assert.Equal(t, "1101110000001", r.URL.Query().Get("crno"))
		assert.Equal(t, "json", r.URL.Query().Get("resultType"))
		_, _ = w.Write([]byte(body("00", 3, []map[string]string{
			{"bizYear": "2022", "enpSaleAmt": "100"},
			{"bizYear": "2023", "fnclDcdNm": "consolidated", "enpSaleAmt": "200"},
			{"bizYear": "2023", "fnclDcdNm": "separate", "enpSaleAmt": "150"},
		})))
	})

	got, err := c.Summary(context.Background(), "1101110000001")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "200", got[0].Revenue)
	assert.Equal(t, "separate", got[1].StatementKind)
}

func TestBalanceSheet_FetchesLastPage(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("pageNo"))
		switch page {
		case 1:
			_, _ = w.Write([]byte(body("00", "250", []map[string]string{{"bizYear": "2015", "acitNm": "Total assets"}})))
		case 3:
			_, _ = w.Write([]byte(body("00", "250", []map[string]string{
				{"bizYear": "2023", "acitNm": "Total assets", "crtmAcitAmt": "900"},
				{"bizYear": "2024", "acitNm": "Total assets", "crtmAcitAmt": "1000"},
			})))
		default:
			t.Errorf("unexpected page %d", page)
		}
	})

	got, err := c.BalanceSheet(context.Background(), "1101110000001")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, got, 1)
	assert.Equal(t, "1000", got[0].Current)
}

func TestIncomeStatement_EmptyItems(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"header":{"resultCode":"00"},"body":{"totalCount":0,"items":""}}}`))
	})

	got, err := c.IncomeStatement(context.Background(), "1101110000001")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOutline(t *testing.T) {
	t.Run("single item object", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/getCorpOutline_V2", r.URL.Path)
			_, _ = w.Write([]byte(body("00", 1, map[string]string{"corpNm": "Acme Industries", "enpEmpeCnt": "120"})))
		})
		got, err := c.Outline(context.Background(), "1101110000001")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Acme Industries", got.Name)
		assert.Equal(t, "120", got.EmployeeCount)
	})

	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body("00", 0, []any{})))
		})
		got, err := c.Outline(context.Background(), "1101110000001")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body("30", 0, nil)))
	})
	_, err := c.Summary(context.Background(), "1101110000001")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "30", apiErr.Code)

	_, err = New(Config{}, nil).Outline(context.Background(), "1101110000001")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
