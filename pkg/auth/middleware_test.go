package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/config"
)

func whoami(w http.ResponseWriter, r *http.Request) {
	subject := "anonymous"
	if claims := ClaimsFromContext(r.Context()); claims != nil {
		subject = claims.Subject
	}
	_, _ = w.Write([]byte(subject))
}

func authConfig(requireAuth bool) *config.AuthConfig {
	cfg := &config.AuthConfig{Enabled: true, RequireAuth: &requireAuth}
	cfg.SetDefaults()
	return cfg
}

func TestMiddleware(t *testing.T) {
	validator, privateKey, _ := setupTestValidator(t)
	valid := "Bearer " + createTestJWT(t, privateKey, testIssuer, testAudience, "user-123", nil)

	tests := []struct {
		name        string
		requireAuth bool
		path        string
		header      string
		wantStatus  int
		wantBody    string
	}{
		{name: "valid token", requireAuth: true, path: "/v1/research", header: valid, wantStatus: http.StatusOK, wantBody: "user-123"},
		{name: "missing header", requireAuth: true, path: "/v1/research", wantStatus: http.StatusUnauthorized, wantBody: "Missing Authorization header"},
		{name: "missing header optional", requireAuth: false, path: "/v1/research", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "invalid format", requireAuth: true, path: "/v1/research", header: "Token abc", wantStatus: http.StatusUnauthorized, wantBody: "Invalid Authorization format"},
		{name: "invalid token optional", requireAuth: false, path: "/v1/research", header: "Bearer invalid", wantStatus: http.StatusUnauthorized, wantBody: "invalid token"},
		{name: "excluded path", requireAuth: true, path: "/health", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "excluded prefix", requireAuth: true, path: "/metrics/extra", wantStatus: http.StatusOK, wantBody: "anonymous"},
		{name: "not a prefix match", requireAuth: true, path: "/healthz", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Middleware(validator, authConfig(tt.requireAuth))(http.HandlerFunc(whoami))
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestMiddleware_ErrorBodyIsJSON(t *testing.T) {
	validator, _, _ := setupTestValidator(t)
	handler := Middleware(validator, authConfig(true))(http.HandlerFunc(whoami))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sections/x/y", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Missing Authorization header", body["error"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRequireRole(t *testing.T) {
	validator, privateKey, _ := setupTestValidator(t)
	chain := func() http.Handler {
		return Middleware(validator, authConfig(false))(RequireRole("admin")(http.HandlerFunc(whoami)))
	}

	tests := []struct {
		name       string
		role       string
		anonymous  bool
		wantStatus int
	}{
		{name: "allowed", role: "admin", wantStatus: http.StatusOK},
		{name: "forbidden", role: "viewer", wantStatus: http.StatusForbidden},
		{name: "anonymous", anonymous: true, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/v1/cache", nil)
			if !tt.anonymous {
				token := createTestJWT(t, privateKey, testIssuer, testAudience, "user-1", map[string]any{"role": tt.role})
				req.Header.Set("Authorization", "Bearer "+token)
			}
			rec := httptest.NewRecorder()
			chain().ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
