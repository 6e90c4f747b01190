package hitl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitPending(t *testing.T, a *Awaiter, id string) {
	t.Helper()
	require.Eventually(t, func() bool { return a.IsWaiting(id) }, time.Second, 5*time.Millisecond)
}

func TestAwaiter_Provide(t *testing.T) {
	a := NewAwaiter()
	done := make(chan Decision, 1)

	go func() {
		d, err := a.Decide(context.Background(), Prompt{ID: "p1", Kind: KindChoice, Options: []string{"all", "top3"}})
		assert.NoError(t, err)
		done <- d
	}()

	waitPending(t, a, "p1")
	pending := a.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"all", "top3"}, pending[0].Options)

	require.NoError(t, a.Provide("p1", "top3"))
	assert.Equal(t, Decision{Value: "top3"}, <-done)
	assert.False(t, a.IsWaiting("p1"))
}

func TestAwaiter_Timeout(t *testing.T) {
	a := NewAwaiter()
	d, err := a.Decide(context.Background(), Prompt{ID: "p2", Kind: KindText, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, d.TimedOut)

	_, err = a.Wait(context.Background(), Prompt{ID: "p3", Timeout: 10 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAwaiter_ContextCancelled(t *testing.T) {
	a := NewAwaiter()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Decide(ctx, Prompt{ID: "p4"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwaiter_ProvideErrors(t *testing.T) {
	a := NewAwaiter()
	err := a.Provide("missing", "x")
	assert.True(t, errors.Is(err, ErrNotWaiting))

	go func() {
		_, _ = a.Wait(context.Background(), Prompt{ID: "p5", Timeout: time.Second})
	}()
	waitPending(t, a, "p5")
	require.NoError(t, a.Provide("p5", "a"))

	// A second answer is either rejected as duplicate or as no longer pending.
	assert.Error(t, a.Provide("p5", "b"))
}

func TestAwaiter_LateProvideDoesNotPanic(t *testing.T) {
	a := NewAwaiter()
	for i := 0; i < 50; i++ {
		_, _ = a.Decide(context.Background(), Prompt{ID: "race", Timeout: time.Millisecond})
		_ = a.Provide("race", "late")
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic("manual", "Kim Minsu")

	d, err := s.Decide(context.Background(), Prompt{Kind: KindChoice})
	require.NoError(t, err)
	assert.Equal(t, "manual", d.Value)

	d, _ = s.Decide(context.Background(), Prompt{Kind: KindText})
	assert.Equal(t, "Kim Minsu", d.Value)

	d, _ = s.Decide(context.Background(), Prompt{Kind: KindText})
	assert.True(t, d.TimedOut)
	assert.Len(t, s.Prompts(), 3)

	d, _ = Unattended().Decide(context.Background(), Prompt{})
	assert.True(t, d.TimedOut)
}

func TestEnsureID(t *testing.T) {
	p := Prompt{}
	p.EnsureID()
	assert.NotEmpty(t, p.ID)

	q := Prompt{ID: "fixed"}
	q.EnsureID()
	assert.Equal(t, "fixed", q.ID)
}
