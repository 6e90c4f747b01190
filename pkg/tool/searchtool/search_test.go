package searchtool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic":[{"title":"Acme AI","link":"https://news.example/acme","snippet":"lab","position":1}]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "secret", Endpoint: srv.URL}, nil)
	results, err := c.Search(context.Background(), " Acme AI ", 0)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "https://news.example/acme", results[0].Link)
	assert.Equal(t, request{Query: "Acme AI", Country: "kr", Language: "ko", Num: DefaultResults}, got)
}

func TestSearch_NoOrganicIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	results, err := New(Config{APIKey: "k", Endpoint: srv.URL}, nil).Search(context.Background(), "nothing", 100)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_Errors(t *testing.T) {
	_, err := New(Config{}, nil).Search(context.Background(), "q", 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{APIKey: "k"}, nil).Search(context.Background(), "  ", 1)
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()
	_, err = New(Config{APIKey: "k", Endpoint: srv.URL}, nil).Search(context.Background(), "q", 1)
	assert.Error(t, err)
}
