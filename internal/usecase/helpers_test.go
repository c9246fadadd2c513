package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront-auth/internal/data/entity"
	"storefront-auth/internal/data/repository"
	"storefront-auth/internal/dto/request"
	"storefront-auth/pkg/cache"
	"storefront-auth/pkg/identity"
	"storefront-auth/pkg/mailer"
	"storefront-auth/pkg/ratelimit"
	"storefront-auth/pkg/token"
	"storefront-auth/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPassword  = "Sup3r-secret!"
	testAdminKey  = "operator-admin-key"
	testIDPSecret = "broker-secret-broker-secret-0123"
)

var codePattern = regexp.MustCompile(`code is (\d+)`)

type stubMailer struct {
	mu    sync.Mutex
	sent  []mailer.Message
	err   error
	block chan struct{}
}

func (m *stubMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *stubMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *stubMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// lastCode extracts the code from the most recent message sent to email.
func (m *stubMailer) lastCode(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To != email {
			continue
		}
		match := codePattern.FindStringSubmatch(m.sent[i].Text)
		require.Len(t, match, 2)
		return match[1]
	}
	t.Fatalf("no message sent to %s", email)
	return ""
}

type harness struct {
	svc    *Service
	repo   *repository.Repository
	mail   *stubMailer
	clock  *clockwork.FakeClock
	redis  *miniredis.Miniredis
	tokens *token.Manager
	config *utils.Config
}

func newHarness(t *testing.T, tweaks ...func(*utils.Config)) *harness {
	t.Helper()

	cfg := &utils.Config{
		App:       utils.AppConfig{Name: "Storefront", Env: utils.EnvDevelopment},
		JWT:       utils.JWTConfig{Secret: strings.Repeat("k", 32), Issuer: "storefront-auth", ExpiryHours: 168},
		Email:     utils.EmailConfig{WaitTimeout: 2 * time.Second},
		OTP:       utils.OTPConfig{Length: 6, ExpiryMinutes: 10, MaxAttempts: 5, LockMinutes: 15},
		RateLimit: utils.RateLimitConfig{Max: 100, WindowMinutes: 15},
		Admin:     utils.AdminConfig{Key: testAdminKey},
	}
	for _, tweak := range tweaks {
		tweak(cfg)
	}

	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := cache.NewRedis(client, "test")

	tokens, err := token.NewManager(token.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.ExpiryHours) * time.Hour,
	}, clock)
	require.NoError(t, err)

	mail := &stubMailer{}
	repo := repository.NewMemoryRepository()
	log := zap.NewNop()

	svc := NewService(repo, cfg, Infra{
		Tokens: tokens,
		Mailer: mail,
		Limiter: ratelimit.New(store, ratelimit.Config{
			Max:    cfg.RateLimit.Max,
			Window: time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute,
		}, log),
		Cache: store,
		Identity: identity.NewJWTVerifier(identity.Config{
			Provider: "google",
			Secret:   testIDPSecret,
			Issuer:   "https://broker.example.com",
			Audience: "storefront",
		}, clock),
		Clock: clock,
	}, log)

	return &harness{
		svc:    svc,
		repo:   repo,
		mail:   mail,
		clock:  clock,
		redis:  mr,
		tokens: tokens,
		config: cfg,
	}
}

func (h *harness) register(t *testing.T, username, email string) {
	t.Helper()
	resp, err := h.svc.Auth.Register(context.Background(), &request.RegisterRequest{
		Username: username,
		Email:    email,
		Password: testPassword,
	})
	require.NoError(t, err)
	require.Empty(t, resp.Warning)
}

func (h *harness) registerVerified(t *testing.T, username, email string) *entity.User {
	t.Helper()
	h.register(t, username, email)

	_, err := h.svc.Auth.VerifyOTP(context.Background(), &request.VerifyOTPRequest{
		Email: email,
		OTP:   h.mail.lastCode(t, email),
	})
	require.NoError(t, err)

	return h.user(t, email)
}

func (h *harness) user(t *testing.T, email string) *entity.User {
	t.Helper()
	u, err := h.repo.User.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func wrongCode(code string) string {
	if code == "100000" {
		return "100001"
	}
	return "100000"
}

var errRelayDown = errors.New("relay down")
