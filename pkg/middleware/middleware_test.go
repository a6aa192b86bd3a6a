package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := GetUserID(r.Context())
		w.Header().Set("X-Caller", uid)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAcceptsSignedToken(t *testing.T) {
	v := NewVerifier("s3cret", "crm-auth")
	token, err := v.Sign("user-7", "agent", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	v.Require(okHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-7", rec.Header().Get("X-Caller"))
}

func TestRequireAcceptsQueryToken(t *testing.T) {
	v := NewVerifier("s3cret", "")
	token, err := v.Sign("user-8", "", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/ws?token="+token, nil)
	rec := httptest.NewRecorder()
	v.Require(okHandler(t)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireRejects(t *testing.T) {
	v := NewVerifier("s3cret", "crm-auth")
	other := NewVerifier("other", "crm-auth")
	foreign, err := other.Sign("user-7", "", time.Minute)
	require.NoError(t, err)
	expired, err := v.Sign("user-7", "", -time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := NewVerifier("s3cret", "elsewhere").Sign("user-7", "", time.Minute)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":      "",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": "Bearer " + foreign,
		"expired":      "Bearer " + expired,
		"wrong issuer": "Bearer " + wrongIssuer,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			v.Require(okHandler(t)).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "ip:10.0.0.1:5555", clientID(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "ip:203.0.113.9", clientID(req))

	req = req.WithContext(context.WithValue(req.Context(), ContextUserID, "u1"))
	assert.Equal(t, "uid:u1", clientID(req))
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	h := RateLimiter(rdb, 1, time.Minute, time.Minute, "test", zap.NewNop())(okHandler(t))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	prefix := "wa-test-" + time.Now().Format("150405.000000")
	h := RateLimiter(rdb, 2, time.Minute, time.Minute, prefix, zap.NewNop())(okHandler(t))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}
