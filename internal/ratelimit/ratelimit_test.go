package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	handler := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/book", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:3333"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1111"))
}

func TestIdleVisitorsAreDropped(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.getLimiter("10.0.0.1")
	assert.Len(t, rl.visitors, 1)

	now = now.Add(idleTTL + time.Second)
	rl.getLimiter("10.0.0.2")
	assert.Len(t, rl.visitors, 1)
	_, ok := rl.visitors["10.0.0.2"]
	assert.True(t, ok)
}
