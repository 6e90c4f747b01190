package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/dossier/pkg/cache"
	"github.com/kadirpekel/dossier/pkg/config"
)

// Limiter counts runs per caller against fixed windows. Windows are
// aligned to the epoch, so every instance sharing a store agrees on them.
type Limiter struct {
	rules []Rule
	store Store
	now   func() time.Time
}

// NewLimiter creates a limiter over store.
func NewLimiter(rules []Rule, store Store) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required")
	}
	return &Limiter{rules: rules, store: store, now: time.Now}, nil
}

// NewFromConfig builds the configured limiter, or returns nil when rate
// limiting is disabled.
func NewFromConfig(ctx context.Context, cfg *config.RateLimitConfig) (*Limiter, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	rules := make([]Rule, 0, len(cfg.Limits))
	for _, l := range cfg.Limits {
		w, err := ParseTimeWindow(l.Window)
		if err != nil {
			return nil, err
		}
		rules = append(rules, Rule{Window: w, Limit: l.Limit})
	}

	var store Store = NewMemoryStore()
	if cfg.Backend == cache.BackendRedis {
		rs, err := NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		store = rs
	}
	return NewLimiter(rules, store)
}

// Allow counts one run for identifier against every rule.
func (l *Limiter) Allow(ctx context.Context, identifier string) (*CheckResult, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}

	now := l.now()
	result := &CheckResult{
		Allowed: true,
		Usages:  make([]Usage, 0, len(l.rules)),
	}

	for _, rule := range l.rules {
		dur := rule.Window.Duration()
		idx := now.UnixNano() / int64(dur)
		windowEnd := time.Unix(0, (idx+1)*int64(dur))

		key := fmt.Sprintf("%s:%s:%d", identifier, rule.Window, idx)
		current, err := l.store.Increment(ctx, key, dur)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s window: %w", rule.Window, err)
		}

		result.Usages = append(result.Usages, Usage{
			Window:    rule.Window,
			Current:   current,
			Limit:     rule.Limit,
			Remaining: max(rule.Limit-current, 0),
			WindowEnd: windowEnd,
		})

		if current > rule.Limit {
			if result.Allowed {
				result.Reason = fmt.Sprintf("run limit exceeded for %s window (%d/%d)", rule.Window, current, rule.Limit)
			}
			result.Allowed = false
			if retry := windowEnd.Sub(now); retry > result.RetryAfter {
				result.RetryAfter = retry
			}
		}
	}
	return result, nil
}

// Close closes the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
