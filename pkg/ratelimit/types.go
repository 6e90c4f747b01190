package ratelimit

import (
	"fmt"
	"time"
)

// TimeWindow represents a rate limiting time window
type TimeWindow string

const (
	WindowMinute TimeWindow = "minute"
	WindowHour   TimeWindow = "hour"
	WindowDay    TimeWindow = "day"
	WindowWeek   TimeWindow = "week"
)

// Duration returns the duration for the time window
func (w TimeWindow) Duration() time.Duration {
	switch w {
	case WindowMinute:
		return time.Minute
	case WindowHour:
		return time.Hour
	case WindowDay:
		return 24 * time.Hour
	case WindowWeek:
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// ParseTimeWindow converts a config string to a TimeWindow.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch w := TimeWindow(s); w {
	case WindowMinute, WindowHour, WindowDay, WindowWeek:
		return w, nil
	default:
		return "", fmt.Errorf("unknown time window %q", s)
	}
}

// Rule is one quota.
type Rule struct {
	Window TimeWindow
	Limit  int64
}

// Usage represents current usage for a specific limit
type Usage struct {
	Window    TimeWindow `json:"window"`
	Current   int64      `json:"current"`
	Limit     int64      `json:"limit"`
	Remaining int64      `json:"remaining"`
	WindowEnd time.Time  `json:"window_end"`
}

// CheckResult represents the result of a rate limit check
type CheckResult struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason,omitempty"`
	Usages     []Usage       `json:"usages"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// MostRestrictive returns the usage with the fewest remaining runs.
func (r *CheckResult) MostRestrictive() *Usage {
	var most *Usage
	for i := range r.Usages {
		u := &r.Usages[i]
		if most == nil || u.Remaining < most.Remaining {
			most = u
		}
	}
	return most
}
