package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"smartqueue/internal/apperr"
	"smartqueue/internal/logger"
	"smartqueue/internal/utils"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the verified caller of a scoped route.
type Principal struct {
	Subject   string
	Scope     Scope
	TokenID   string
	ExpiresAt time.Time
}

type Middleware struct {
	Tokens      *TokenManager
	Revocations RevocationStore
	Logger      *logger.Logger
}

func NewMiddleware(tokens *TokenManager, revocations RevocationStore, logger *logger.Logger) *Middleware {
	return &Middleware{Tokens: tokens, Revocations: revocations, Logger: logger}
}

// RequireScope rejects requests without a valid, unrevoked token of scope.
func (m *Middleware) RequireScope(scope Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := m.authenticate(r, scope)
			if err != nil {
				m.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// OptionalScope lets anonymous requests through. A request that does present
// a bearer token must carry a valid one of scope.
func (m *Middleware) OptionalScope(scope Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := m.authenticate(r, scope)
			if err != nil {
				m.fail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func (m *Middleware) authenticate(r *http.Request, scope Scope) (Principal, error) {
	raw, err := ExtractTokenFromRequest(r)
	if err != nil {
		return Principal{}, fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
	}

	claims, err := m.Tokens.Verify(scope, raw)
	if err != nil {
		return Principal{}, err
	}

	if m.Revocations != nil {
		revoked, err := m.Revocations.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			m.Logger.Error("AUTH", fmt.Sprintf("Revocation check failed: %v", err))
			return Principal{}, fmt.Errorf("cannot verify session: %w", apperr.ErrUnavailable)
		}
		if revoked {
			return Principal{}, fmt.Errorf("token has been revoked: %w", apperr.ErrUnauthorized)
		}
	}

	principal := Principal{
		Subject: claims.Subject,
		Scope:   claims.Scope,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

func (m *Middleware) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperr.ErrUnavailable) {
		utils.WriteError(w, err)
		return
	}
	m.reject(w, r, err)
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	m.Logger.LogSecurity("REJECTED", fmt.Sprintf("%s %s from %s: %v", r.Method, r.URL.Path, r.RemoteAddr, err))
	utils.WriteError(w, err)
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller set by RequireScope or OptionalScope.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Subject is a shorthand for handlers behind RequireScope.
func Subject(ctx context.Context) string {
	p, _ := PrincipalFrom(ctx)
	return p.Subject
}
