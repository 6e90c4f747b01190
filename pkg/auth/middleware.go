package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kadirpekel/dossier/pkg/config"
)

// Middleware authenticates requests with v. Excluded paths pass untouched.
// Requests without an Authorization header are rejected when cfg requires
// auth, and proceed anonymously otherwise. A header that is present must
// always carry a valid token.
func Middleware(v TokenValidator, cfg *config.AuthConfig) func(http.Handler) http.Handler {
	excluded := cfg.ExcludedPaths
	requireAuth := cfg.IsRequireAuth()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExcluded(r.URL.Path, excluded) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if requireAuth {
					writeError(w, http.StatusUnauthorized, "Missing Authorization header")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				writeError(w, http.StatusUnauthorized, "Invalid Authorization format, expected: Bearer <token>")
				return
			}

			claims, err := v.ValidateToken(r.Context(), tokenString)
			if err != nil {
				slog.Debug("Token rejected", "path", r.URL.Path, "error", err)
				if errors.Is(err, ErrInvalidToken) {
					writeError(w, http.StatusUnauthorized, "Unauthorized: invalid token")
				} else {
					writeError(w, http.StatusServiceUnavailable, "Unable to verify token")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole admits only requests whose claims carry one of roles. It must
// run behind Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, ErrUnauthorized.Error())
				return
			}
			if !claims.HasAnyRole(roles...) {
				writeError(w, http.StatusForbidden, ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isExcluded(path string, excluded []string) bool {
	for _, p := range excluded {
		if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
