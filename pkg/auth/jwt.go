// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator verifies a raw bearer token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	Close()
}

// JWTValidatorConfig configures a JWTValidator.
type JWTValidatorConfig struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	RefreshInterval time.Duration
}

// JWTValidator verifies tokens against a cached, auto-refreshed JWKS.
type JWTValidator struct {
	cfg    JWTValidatorConfig
	cache  *jwk.Cache
	cancel context.CancelFunc
}

var _ TokenValidator = (*JWTValidator)(nil)

// NewJWTValidator registers the JWKS URL and performs the first fetch, so a
// misconfigured endpoint fails at startup.
func NewJWTValidator(cfg JWTValidatorConfig) (*JWTValidator, error) {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &JWTValidator{cfg: cfg, cache: cache, cancel: cancel}, nil
}

var standardClaims = map[string]bool{
	jwt.SubjectKey: true, jwt.IssuerKey: true, jwt.AudienceKey: true,
	jwt.ExpirationKey: true, jwt.IssuedAtKey: true, jwt.NotBeforeKey: true,
	jwt.JwtIDKey: true, "email": true, "role": true, "tenant_id": true,
}

// ValidateToken checks signature, expiry, issuer and audience, then maps the
// token into Claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.cfg.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &Claims{Subject: token.Subject(), Custom: map[string]any{}}
	claims.Email = stringClaim(token, "email")
	claims.Role = stringClaim(token, "role")
	claims.TenantID = stringClaim(token, "tenant_id")

	for key, value := range token.PrivateClaims() {
		if !standardClaims[key] {
			claims.Custom[key] = value
		}
	}
	return claims, nil
}

func stringClaim(token jwt.Token, key string) string {
	raw, ok := token.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}

// Close stops the background JWKS refresh.
func (v *JWTValidator) Close() {
	v.cancel()
}
