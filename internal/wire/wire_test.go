package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-auth/internal/data/repository"
	"storefront-auth/internal/dto/request"
	"storefront-auth/internal/usecase"
	"storefront-auth/pkg/cache"
	"storefront-auth/pkg/identity"
	"storefront-auth/pkg/mailer"
	"storefront-auth/pkg/ratelimit"
	"storefront-auth/pkg/token"
	"storefront-auth/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	password  = "Sup3r-secret!"
	idpSecret = "broker-shared-secret"
)

var codePattern = regexp.MustCompile(`code is (\d+)`)

type captureMailer struct {
	mu   sync.Mutex
	last map[string]string
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if match := codePattern.FindStringSubmatch(msg.Text); len(match) == 2 {
		m.last[msg.To] = match[1]
	}
	return nil
}

func (m *captureMailer) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[email]
}

type envelope struct {
	Success    bool            `json:"success"`
	Msg        string          `json:"msg"`
	Code       string          `json:"code"`
	Data       json.RawMessage `json:"data"`
	RetryAfter int             `json:"retryAfter"`
}

type testApp struct {
	app  *App
	repo *repository.Repository
	mail *captureMailer
}

func newTestApp(t *testing.T, maxRequests int, tweaks ...func(*utils.Config)) *testApp {
	t.Helper()

	cfg := &utils.Config{
		App:   utils.AppConfig{Name: "Storefront", Env: utils.EnvDevelopment},
		Email: utils.EmailConfig{WaitTimeout: 2 * time.Second},
		OTP:   utils.OTPConfig{Length: 6, ExpiryMinutes: 10, MaxAttempts: 5, LockMinutes: 15},
		Admin: utils.AdminConfig{Key: "admin-key"},
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewRedis(client, "test")

	tokens, err := token.NewManager(token.Config{Secret: strings.Repeat("k", 32), Issuer: "storefront-auth"}, nil)
	require.NoError(t, err)

	mail := &captureMailer{last: map[string]string{}}
	repo := repository.NewMemoryRepository()
	verifier := identity.NewJWTVerifier(identity.Config{Provider: "google", Secret: idpSecret}, nil)
	log := zap.NewNop()

	app := Wiring(repo, cfg, usecase.Infra{
		Tokens:   tokens,
		Mailer:   mail,
		Limiter:  ratelimit.New(store, ratelimit.Config{Max: maxRequests, Window: 15 * time.Minute}, log),
		Cache:    store,
		Identity: verifier,
	}, log)

	return &testApp{app: app, repo: repo, mail: mail}
}

func (a *testApp) do(t *testing.T, method, path string, body any, bearer string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return a.serve(t, req)
}

func (a *testApp) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.app.Router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestRegisterVerifyAndMe(t *testing.T) {
	a := newTestApp(t, 100)

	rec, env := a.do(t, http.MethodPost, "/api/register", request.RegisterRequest{
		Username: "alice", Email: "alice@example.com", Password: password,
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, env.Msg)
	assert.True(t, env.Success)

	code := a.mail.code("alice@example.com")
	require.NotEmpty(t, code)
	assert.NotContains(t, rec.Body.String(), code)

	rec, env = a.do(t, http.MethodPost, "/api/login", request.LoginRequest{Email: "alice@example.com", Password: password}, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NotVerifiedError", env.Code)

	rec, env = a.do(t, http.MethodPost, "/api/verify-otp", request.VerifyOTPRequest{Email: "alice@example.com", OTP: code}, "")
	require.Equal(t, http.StatusOK, rec.Code, env.Msg)

	var auth struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
		User      struct {
			Email  string `json:"email"`
			Status string `json:"status"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, "verified", auth.User.Status)

	rec, env = a.do(t, http.MethodGet, "/api/me", nil, auth.Token)
	require.Equal(t, http.StatusOK, rec.Code, env.Msg)
	assert.Contains(t, string(env.Data), `"email":"alice@example.com"`)
}

func TestErrorEnvelope(t *testing.T) {
	a := newTestApp(t, 100)

	rec, env := a.do(t, http.MethodPost, "/api/login", request.LoginRequest{Email: "ghost@example.com", Password: password}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "InvalidCredentialsError", env.Code)

	rec, env = a.do(t, http.MethodPost, "/api/register", map[string]string{"email": "bad"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", env.Code)

	rec, env = a.do(t, http.MethodGet, "/api/me", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "InvalidTokenError", env.Code)
}

func TestLockoutSetsRetryAfter(t *testing.T) {
	a := newTestApp(t, 100)
	a.do(t, http.MethodPost, "/api/register", request.RegisterRequest{
		Username: "bob", Email: "bob@example.com", Password: password,
	}, "")

	wrong := "100000"
	if a.mail.code("bob@example.com") == wrong {
		wrong = "100001"
	}

	var rec *httptest.ResponseRecorder
	var env envelope
	for i := 0; i < 5; i++ {
		rec, env = a.do(t, http.MethodPost, "/api/verify-otp", request.VerifyOTPRequest{Email: "bob@example.com", OTP: wrong}, "")
	}
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "AccountLockedError", env.Code)
	assert.Equal(t, 900, env.RetryAfter)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
}

func TestPerIPRateLimit(t *testing.T) {
	a := newTestApp(t, 2)
	body := request.LoginRequest{Email: "ghost@example.com", Password: password}

	for i := 0; i < 2; i++ {
		rec, _ := a.do(t, http.MethodPost, "/api/login", body, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec, env := a.do(t, http.MethodPost, "/api/login", request.LoginRequest{Email: "other@example.com", Password: password}, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimitedError", env.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	a := newTestApp(t, 100)

	rec, _ := a.do(t, http.MethodGet, "/api/admin/users", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	a.do(t, http.MethodPost, "/api/register", request.RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: password,
	}, "")
	_, env := a.do(t, http.MethodPost, "/api/verify-otp", request.VerifyOTPRequest{
		Email: "carol@example.com", OTP: a.mail.code("carol@example.com"),
	}, "")
	var customer struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &customer))

	rec, _ = a.do(t, http.MethodGet, "/api/admin/users", nil, customer.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, err := a.app.Service.User.CreateAdmin(context.Background(), &request.RegisterRequest{
		Username: "root", Email: "root@example.com", Password: password,
	})
	require.NoError(t, err)

	rec, env = a.do(t, http.MethodPost, "/api/admin-login", request.AdminLoginRequest{
		Email: "root@example.com", Password: password, AdminKey: "admin-key",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, env.Msg)
	var admin struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &admin))

	rec, env = a.do(t, http.MethodGet, "/api/admin/users?page=1&per_page=10", nil, admin.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":2`)

	rec, env = a.do(t, http.MethodDelete, "/api/admin/users/"+"00000000-0000-0000-0000-000000000000", nil, admin.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NotFoundError", env.Code)
}

func (a *testApp) createAdmin(t *testing.T) {
	t.Helper()
	_, err := a.app.Service.User.CreateAdmin(context.Background(), &request.RegisterRequest{
		Username: "root", Email: "root@example.com", Password: password,
	})
	require.NoError(t, err)
}

func tokenFrom(t *testing.T, env envelope) string {
	t.Helper()
	var auth struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &auth))
	require.NotEmpty(t, auth.Token)
	return auth.Token
}

func TestPasswordLoginOfAdminCannotReachAdminRoutes(t *testing.T) {
	a := newTestApp(t, 100)
	a.createAdmin(t)

	rec, env := a.do(t, http.MethodPost, "/api/login", request.LoginRequest{
		Email: "root@example.com", Password: password,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, env.Msg)

	rec, env = a.do(t, http.MethodGet, "/api/admin/users", nil, tokenFrom(t, env))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ForbiddenError", env.Code)
}

func TestExternalLoginOfAdminCannotReachAdminRoutes(t *testing.T) {
	a := newTestApp(t, 100)
	a.createAdmin(t)

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":            "idp-root",
		"email":          "root@example.com",
		"email_verified": true,
		"exp":            time.Now().Add(5 * time.Minute).Unix(),
	}).SignedString([]byte(idpSecret))
	require.NoError(t, err)

	rec, env := a.do(t, http.MethodPost, "/api/oauth-login", request.OAuthLoginRequest{IDToken: assertion}, "")
	require.Equal(t, http.StatusOK, rec.Code, env.Msg)

	rec, _ = a.do(t, http.MethodGet, "/api/admin/users", nil, tokenFrom(t, env))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// loginFrom sends a failing login for a fresh email from one fixed socket
// address with the given X-Forwarded-For header.
func loginFrom(t *testing.T, a *testApp, i int, forwardedFor string) int {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(request.LoginRequest{
		Email: fmt.Sprintf("ghost%d@example.com", i), Password: password,
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/login", &buf)
	req.RemoteAddr = "203.0.113.7:40000"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	rec, _ := a.serve(t, req)
	return rec.Code
}

func TestForwardedForIgnoredByDefault(t *testing.T) {
	a := newTestApp(t, 2)

	var codes []int
	for i := 0; i < 6; i++ {
		codes = append(codes, loginFrom(t, a, i, fmt.Sprintf("198.51.100.%d", i+1)))
	}

	assert.Equal(t, []int{
		http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func TestForwardedForHonouredBehindTrustedProxy(t *testing.T) {
	a := newTestApp(t, 2, func(c *utils.Config) { c.App.TrustProxy = true })

	for i := 0; i < 6; i++ {
		assert.Equal(t, http.StatusUnauthorized, loginFrom(t, a, i, fmt.Sprintf("198.51.100.%d", i+1)))
	}
}

func TestHealth(t *testing.T) {
	a := newTestApp(t, 100)

	rec, env := a.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), `"cache":true`)
}
