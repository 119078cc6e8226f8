package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smartqueue/internal/apperr"
	"smartqueue/internal/config"
)

// Scope is a capability a bearer token grants. Each scope is signed with its
// own secret and carries its own audience, so a token of one scope never
// verifies as another.
type Scope string

const (
	ScopeAdmin      Scope = "admin"
	ScopeSuperAdmin Scope = "super-admin"
	ScopeCustomer   Scope = "customer"
)

const tokenIssuer = "smartqueue"

type Claims struct {
	Scope Scope `json:"scope"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secrets map[Scope][]byte
	ttl     time.Duration
	now     func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenManager{
		secrets: map[Scope][]byte{
			ScopeAdmin:      []byte(cfg.AdminSecret),
			ScopeSuperAdmin: []byte(cfg.SuperAdminSecret),
			ScopeCustomer:   []byte(cfg.CustomerSecret),
		},
		ttl: ttl,
		now: time.Now,
	}
}

// Issue signs a token for subject in the given scope.
func (m *TokenManager) Issue(scope Scope, subject string) (string, *Claims, error) {
	secret, ok := m.secrets[scope]
	if !ok || len(secret) == 0 {
		return "", nil, fmt.Errorf("no signing secret for scope %q", scope)
	}

	now := m.now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{string(scope)},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, issuer, audience and expiry for the given scope.
func (m *TokenManager) Verify(scope Scope, raw string) (*Claims, error) {
	secret, ok := m.secrets[scope]
	if !ok || len(secret) == 0 {
		return nil, fmt.Errorf("unknown scope %q: %w", scope, apperr.ErrUnauthorized)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(string(scope)),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v: %w", err, apperr.ErrUnauthorized)
	}
	if claims.Scope != scope || claims.Subject == "" {
		return nil, fmt.Errorf("token scope mismatch: %w", apperr.ErrUnauthorized)
	}
	return claims, nil
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}
