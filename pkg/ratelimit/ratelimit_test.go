package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/auth"
	"github.com/kadirpekel/dossier/pkg/config"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, rules ...Rule) (*Limiter, *clock, *MemoryStore) {
	t.Helper()
	c := &clock{t: time.Date(2025, 3, 10, 9, 0, 5, 0, time.UTC)}
	store := NewMemoryStore()
	store.now = c.now
	l, err := NewLimiter(rules, store)
	require.NoError(t, err)
	l.now = c.now
	return l, c, store
}

func TestAllow_CountsPerWindow(t *testing.T) {
	l, c, _ := newTestLimiter(t, Rule{Window: WindowMinute, Limit: 2}, Rule{Window: WindowDay, Limit: 3})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "user:alice")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := l.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "minute window (3/2)")
	assert.Equal(t, 55*time.Second, res.RetryAfter)

	other, err := l.Allow(ctx, "user:bob")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "callers are counted separately")

	c.t = c.t.Add(time.Minute)
	res, err = l.Allow(ctx, "user:alice")
	require.NoError(t, err)
	assert.False(t, res.Allowed, "the day quota is spent")
	assert.Contains(t, res.Reason, "day window (4/3)")
	assert.Equal(t, 14*time.Hour+59*time.Minute-5*time.Second, res.RetryAfter)
}

func TestAllow_Usage(t *testing.T) {
	l, _, _ := newTestLimiter(t, Rule{Window: WindowMinute, Limit: 5}, Rule{Window: WindowHour, Limit: 2})

	res, err := l.Allow(context.Background(), "addr:10.0.0.1")
	require.NoError(t, err)
	require.Len(t, res.Usages, 2)
	assert.Equal(t, int64(4), res.Usages[0].Remaining)

	most := res.MostRestrictive()
	require.NotNil(t, most)
	assert.Equal(t, WindowHour, most.Window)
	assert.Equal(t, int64(1), most.Remaining)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), most.WindowEnd.UTC())
}

func TestMemoryStore_SweepsExpired(t *testing.T) {
	l, c, store := newTestLimiter(t, Rule{Window: WindowMinute, Limit: 5})
	ctx := context.Background()

	_, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	_, err = l.Allow(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Size())

	c.t = c.t.Add(2 * time.Minute)
	_, err = l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Size())
}

func TestNewLimiter_Errors(t *testing.T) {
	_, err := NewLimiter([]Rule{{Window: WindowMinute, Limit: 1}}, nil)
	assert.Error(t, err)
	_, err = NewLimiter(nil, NewMemoryStore())
	assert.Error(t, err)

	l, err := NewLimiter([]Rule{{Window: WindowMinute, Limit: 1}}, NewMemoryStore())
	require.NoError(t, err)
	_, err = l.Allow(context.Background(), "")
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	l, err := NewFromConfig(context.Background(), &config.RateLimitConfig{})
	require.NoError(t, err)
	assert.Nil(t, l)

	cfg := &config.RateLimitConfig{Enabled: true}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	l, err = NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Len(t, l.rules, 2)
	assert.IsType(t, &MemoryStore{}, l.store)
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func (failingStore) Close() error { return nil }

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("nil limiter passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Middleware(nil, nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/research", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("rejects over quota", func(t *testing.T) {
		l, _, _ := newTestLimiter(t, Rule{Window: WindowMinute, Limit: 1})
		h := Middleware(l, nil)(ok)

		req := httptest.NewRequest(http.MethodPost, "/v1/research", nil)
		req.RemoteAddr = "10.0.0.7:51234"

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "55", rec.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "minute window")
	})

	t.Run("identifies by token subject", func(t *testing.T) {
		l, _, _ := newTestLimiter(t, Rule{Window: WindowMinute, Limit: 1})
		h := Middleware(l, nil)(ok)

		for _, sub := range []string{"alice", "bob"} {
			req := httptest.NewRequest(http.MethodPost, "/v1/chat", nil)
			req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{Subject: sub}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNoContent, rec.Code, sub)
		}
	})

	t.Run("fails open", func(t *testing.T) {
		l, err := NewLimiter([]Rule{{Window: WindowMinute, Limit: 1}}, failingStore{})
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		Middleware(l, nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/research", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestDefaultIdentifierFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.4:4000"
	assert.Equal(t, "addr:192.0.2.4", DefaultIdentifierFunc(req))

	req = req.WithContext(auth.ContextWithClaims(req.Context(), &auth.Claims{Subject: "u-1"}))
	assert.Equal(t, "user:u-1", DefaultIdentifierFunc(req))
}
