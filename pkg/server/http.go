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

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/dossier/pkg/auth"
	"github.com/kadirpekel/dossier/pkg/observability"
	"github.com/kadirpekel/dossier/pkg/ratelimit"
)

// routes builds the router.
//
// Middleware order: observability -> logging -> cors -> auth -> routes.
// CORS runs before auth so preflight requests pass through.
func (s *Server) routes() http.Handler {
	obs := s.opts.Observability

	r := chi.NewRouter()
	r.Use(observability.HTTPMiddleware(obs.Tracer(), obs.Metrics(), routePattern))
	r.Use(loggingMiddleware)
	r.Use(s.corsMiddleware)
	if s.opts.Validator != nil {
		r.Use(auth.Middleware(s.opts.Validator, s.opts.Auth))
		slog.Info("Authentication enabled", "excluded_paths", s.opts.Auth.ExcludedPaths)
	}

	r.Get("/health", handleHealth)
	if obs.MetricsEnabled() {
		r.Method(http.MethodGet, obs.MetricsPath(), obs.MetricsHandler())
		slog.Info("Metrics endpoint enabled", "path", obs.MetricsPath())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.Middleware(s.opts.Limiter, nil))
			r.Post("/research", s.handleResearch)
			r.Post("/chat", s.handleChat)
		})
		r.Get("/decisions", s.handleListDecisions)
		r.Post("/decisions/{id}", s.handleProvideDecision)
		r.Get("/sections/{subject}/{workflow}", s.handleSections)
		r.Get("/pins", s.handleListPins)
		r.Post("/pins", s.handleAddPin)
		r.Delete("/pins/{subject}", s.handleRemovePin)

		r.Group(func(r chi.Router) {
			if s.opts.Validator != nil && s.opts.Auth.AdminRole != "" {
				r.Use(auth.RequireRole(s.opts.Auth.AdminRole))
			}
			r.Delete("/conversations/{subject}/{workflow}", s.handleReset)
			r.Delete("/cache", s.handleClearCache)
			r.Get("/admin/status", s.handleAdminStatus)
		})
	})

	return r
}

// routePattern returns the matched chi pattern, falling back to the raw
// path for unmatched requests.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// corsMiddleware sets CORS headers for configured origins. With no origins
// configured it only answers preflight requests.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	origins := s.opts.Server.CORSOrigins
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(origins, "*") || slices.Contains(origins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests without wrapping the writer, which would
// hide http.Flusher from the SSE handlers.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
