package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartqueue/internal/logger"
)

func newProtectedRouter(m *Middleware) http.Handler {
	r := chi.NewRouter()
	r.With(m.RequireScope(ScopeAdmin)).Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(Subject(r.Context())))
	})
	return r
}

func TestRequireScope(t *testing.T) {
	tokens := newTestTokens()
	revocations := NewMemoryRevocations()
	router := newProtectedRouter(NewMiddleware(tokens, revocations, logger.New("")))

	adminToken, adminClaims, err := tokens.Issue(ScopeAdmin, "admin-1")
	require.NoError(t, err)
	superToken, _, err := tokens.Issue(ScopeSuperAdmin, "root")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"wrong scope", "Bearer " + superToken, http.StatusUnauthorized},
		{"admin token", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "admin-1", rec.Body.String())
			}
		})
	}

	require.NoError(t, revocations.Revoke(context.Background(), adminClaims.ID, adminClaims.ExpiresAt.Time))
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalScope(t *testing.T) {
	tokens := newTestTokens()
	revocations := NewMemoryRevocations()
	m := NewMiddleware(tokens, revocations, logger.NewWriter(io.Discard))
	router := chi.NewRouter()
	router.With(m.OptionalScope(ScopeCustomer)).Post("/book", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(Subject(r.Context())))
	})

	customerToken, customerClaims, err := tokens.Issue(ScopeCustomer, "cust-1")
	require.NoError(t, err)
	adminToken, _, err := tokens.Issue(ScopeAdmin, "admin-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{"anonymous", "", http.StatusOK, "anonymous"},
		{"customer token", "Bearer " + customerToken, http.StatusOK, "cust-1"},
		{"wrong scope", "Bearer " + adminToken, http.StatusUnauthorized, ""},
		{"malformed header", "Token abc", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/book", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}

	require.NoError(t, revocations.Revoke(context.Background(), customerClaims.ID, customerClaims.ExpiresAt.Time))
	req := httptest.NewRequest(http.MethodPost, "/book", nil)
	req.Header.Set("Authorization", "Bearer "+customerToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMemoryRevocationsExpire(t *testing.T) {
	revocations := NewMemoryRevocations()
	now := time.Now()
	revocations.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, revocations.Revoke(ctx, "jti-1", now.Add(time.Minute)))
	revoked, err := revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocations(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	revocations := NewRedisRevocations(client)
	ctx := context.Background()
	require.NoError(t, revocations.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))

	revoked, err := revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.Exists("revoked_token:jti-1"))

	mr.FastForward(2 * time.Minute)
	revoked, err = revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	// Already expired tokens are not stored.
	require.NoError(t, revocations.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists("revoked_token:jti-2"))
}
