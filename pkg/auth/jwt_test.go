package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/dossier/pkg/config"
)

func TestNewJWTValidator_UnreachableJWKS(t *testing.T) {
	_, err := NewJWTValidator(JWTValidatorConfig{
		JWKSURL:  "http://127.0.0.1:1/.well-known/jwks.json",
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch JWKS")
}

func TestJWTValidator_ValidateToken(t *testing.T) {
	validator, privateKey, _ := setupTestValidator(t)

	token := createTestJWT(t, privateKey, testIssuer, testAudience, "user-123", map[string]any{
		"email":     "analyst@example.com",
		"role":      "admin",
		"tenant_id": "tenant-456",
		"team":      "credit",
	})

	claims, err := validator.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "analyst@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "tenant-456", claims.TenantID)
	assert.Equal(t, "credit", claims.GetStringClaim("team"))
	assert.NotContains(t, claims.Custom, "role")
	assert.True(t, claims.HasAnyRole("viewer", "admin"))
}

func TestJWTValidator_RejectsInvalidTokens(t *testing.T) {
	validator, privateKey, _ := setupTestValidator(t)
	otherKey := generateRSAKey(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "malformed", token: "not-a-jwt"},
		{name: "wrong issuer", token: createTestJWT(t, privateKey, "https://evil.example", testAudience, "u", nil)},
		{name: "wrong audience", token: createTestJWT(t, privateKey, testIssuer, "other-api", "u", nil)},
		{name: "expired", token: createTestJWT(t, privateKey, testIssuer, testAudience, "u", map[string]any{
			"exp": time.Now().Add(-time.Hour),
		})},
		{name: "unknown signing key", token: createTestJWT(t, otherKey, testIssuer, testAudience, "u", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewValidatorFromConfig(t *testing.T) {
	v, err := NewValidatorFromConfig(&config.AuthConfig{})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = NewValidatorFromConfig(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	privateKey := generateRSAKey(t)
	jwksURL := serveJWKS(t, createJWKS(t, &privateKey.PublicKey))
	cfg := &config.AuthConfig{Enabled: true, JWKSURL: jwksURL, Issuer: testIssuer, Audience: testAudience}

	v, err = NewValidatorFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, v)
	defer v.Close()
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)

	_, err = v.ValidateToken(context.Background(), createTestJWT(t, privateKey, testIssuer, testAudience, "u", nil))
	assert.NoError(t, err)
}
