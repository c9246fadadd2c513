package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-auth/pkg/cache"
	"storefront-auth/pkg/ratelimit"
	"storefront-auth/pkg/token"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRecoverReturnsGenericError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Recover(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("db password leaked")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db password")
	assert.Contains(t, rec.Body.String(), `"code":"InternalError"`)
	assert.Equal(t, 1, logs.FilterMessage("PANIC recovered").Len())
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS()(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/login", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After")
}

func TestAuthTokenAndAdmin(t *testing.T) {
	tokens, err := token.NewManager(token.Config{Secret: strings.Repeat("k", 32), Issuer: "test"}, nil)
	require.NoError(t, err)
	log := zap.NewNop()
	h := AuthToken(tokens, log)(Admin(log)(okHandler))

	customer, _, err := tokens.Issue(uuid.New(), "customer")
	require.NoError(t, err)
	admin, _, err := tokens.Issue(uuid.New(), "admin")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + admin, http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"customer", "Bearer " + customer, http.StatusForbidden},
		{"admin", "bearer " + admin, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRateLimitIsPerIP(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := ratelimit.New(cache.NewRedis(client, "test"), ratelimit.Config{Max: 1, Window: time.Minute}, zap.NewNop())
	h := RateLimit(limiter, ratelimit.RouteLogin, zap.NewNop())(okHandler)

	send := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:5000").Code)

	rec := send("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000").Code)
}

func TestRateLimitFailsOpenWithoutStore(t *testing.T) {
	limiter := ratelimit.New(cache.NewNoop(), ratelimit.Config{Max: 1, Window: time.Minute}, zap.NewNop())
	h := RateLimit(limiter, ratelimit.RouteLogin, zap.NewNop())(okHandler)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
