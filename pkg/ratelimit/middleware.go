// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/kadirpekel/dossier/pkg/auth"
)

// IdentifierFunc extracts the rate limit identifier from an HTTP request.
type IdentifierFunc func(r *http.Request) string

// DefaultIdentifierFunc identifies callers by their token subject, or by
// client address when the request carries no claims.
func DefaultIdentifierFunc(r *http.Request) string {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil && claims.Subject != "" {
		return "user:" + claims.Subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// Middleware creates an HTTP middleware that enforces rate limits.
// A nil limiter passes every request through.
func Middleware(l *Limiter, identify IdentifierFunc) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	if identify == nil {
		identify = DefaultIdentifierFunc
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := identify(r)
			if identifier == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := l.Allow(r.Context(), identifier)
			if err != nil {
				// Fail open.
				slog.Error("Rate limit check failed", "error", err, "identifier", identifier)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				slog.Info("Run rate limited", "identifier", identifier, "reason", result.Reason)
				writeLimited(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeLimited sends the 429 response.
func writeLimited(w http.ResponseWriter, result *CheckResult) {
	retry := int64(math.Ceil(result.RetryAfter.Seconds()))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
	w.WriteHeader(http.StatusTooManyRequests)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":               result.Reason,
		"retry_after_seconds": retry,
		"usage":               result.Usages,
	})
}

// addRateLimitHeaders adds standard rate limit headers to the response.
func addRateLimitHeaders(w http.ResponseWriter, result *CheckResult) {
	u := result.MostRestrictive()
	if u == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(u.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(u.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(u.WindowEnd.Unix(), 10))
}
