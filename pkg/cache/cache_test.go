package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outline struct {
	Name string `json:"name"`
}

func TestFetch_CachesResult(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	var calls atomic.Int32

	load := func(context.Context) (*outline, error) {
		calls.Add(1)
		return &outline{Name: "Acme"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(ctx, c, "fsc_outline_1101110000001", load)
		require.NoError(t, err)
		assert.Equal(t, "Acme", got.Name)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_CachesNilResult(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	var calls atomic.Int32

	load := func(context.Context) (*outline, error) {
		calls.Add(1)
		return nil, nil
	}

	for i := 0; i < 2; i++ {
		got, err := Fetch(ctx, c, "dart_finance_00126380_2024", load)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, err := Fetch(ctx, c, "k", func(context.Context) (string, error) { return "", errors.New("down") })
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	got, err := Fetch(ctx, c, "k", func(context.Context) (string, error) { return "up", nil })
	require.NoError(t, err)
	assert.Equal(t, "up", got)
}

func TestFetch_NilCacheLoadsDirectly(t *testing.T) {
	got, err := Fetch(context.Background(), nil, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestMemory_ClearScope(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Set(ctx, Key("fsc", "outline", "1101110000001"), []byte(`1`)))
	require.NoError(t, c.Set(ctx, Key("nicebiz", "1101110000001"), []byte(`2`)))
	require.NoError(t, c.Set(ctx, Key("fsc", "outline", "1101110000002"), []byte(`3`)))

	n, err := c.ClearScope(ctx, "1101110000001")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}

func TestConfig(t *testing.T) {
	cfg := Config{Backend: BackendRedis}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "dossier:cache:", cfg.Redis.Prefix)

	cfg = Config{Backend: "memcached"}
	assert.Error(t, cfg.Validate())
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `dossier:cache:`, escapeGlob("dossier:cache:"))
	assert.Equal(t, `a\*b\?\[c\]`, escapeGlob("a*b?[c]"))
}

func TestFetch_LoadsArePerCache(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemory(), NewMemory()
	started, release := make(chan struct{}), make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		_, _ = Fetch(ctx, a, "k", func(context.Context) (string, error) {
			close(started)
			<-release
			return "a", nil
		})
	}()
	<-started

	got, err := Fetch(ctx, b, "k", func(context.Context) (string, error) { return "b", nil })
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	close(release)
	<-done
}

func TestFetch_CancelledCallerDoesNotFailOthers(t *testing.T) {
	c := NewMemory()
	first, cancel := context.WithCancel(context.Background())
	started, release := make(chan struct{}), make(chan struct{})

	load := func(ctx context.Context) (string, error) {
		select {
		case <-started:
		default:
			close(started)
		}
		<-release
		return "v", ctx.Err()
	}

	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(first, c, "k", load)
		firstErr <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		v, err := Fetch(context.Background(), c, "k", load)
		assert.NoError(t, err)
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)
	assert.Equal(t, "v", <-second)
}
