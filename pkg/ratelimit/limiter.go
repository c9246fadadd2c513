// Package ratelimit implements fixed-window request limits keyed by
// route and identity (client IP or account email).
package ratelimit

import (
	"context"
	"time"

	"storefront-auth/pkg/apperror"
	"storefront-auth/pkg/cache"

	"go.uber.org/zap"
)

// Scope names the identity a counter is keyed on.
type Scope string

const (
	ScopeIP    Scope = "ip"
	ScopeEmail Scope = "email"
)

// Route names used in counter keys.
const (
	RouteRegister   = "register"
	RouteLogin      = "login"
	RouteAdminLogin = "admin-login"
	RouteVerifyOTP  = "verify-otp"
	RouteResendOTP  = "resend-otp"
)

type Config struct {
	Max    int
	Window time.Duration
}

// Limiter counts requests per route+identity in the fast store. Store
// failures fail open: the request is allowed and a warning is logged.
type Limiter struct {
	store  cache.Store
	config Config
	log    *zap.Logger
}

func New(store cache.Store, cfg Config, log *zap.Logger) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &Limiter{
		store:  store,
		config: cfg,
		log:    log.With(zap.String("component", "ratelimit")),
	}
}

// Allow records one request and returns a RateLimitedError carrying the
// time left in the window once the threshold is exceeded.
func (l *Limiter) Allow(ctx context.Context, route string, scope Scope, identity string) error {
	if identity == "" || !l.store.Enabled() {
		return nil
	}

	count, remaining, err := l.store.Incr(ctx, Key(route, scope, identity), l.config.Window)
	if err != nil {
		l.log.Warn("Rate limit store unavailable, allowing request",
			zap.String("route", route),
			zap.String("scope", string(scope)),
			zap.Error(err))
		return nil
	}

	if count > int64(l.config.Max) {
		l.log.Warn("Rate limit exceeded",
			zap.String("route", route),
			zap.String("scope", string(scope)),
			zap.Int64("count", count))
		return apperror.RateLimited(remaining)
	}

	return nil
}

func Key(route string, scope Scope, identity string) string {
	return "rl:" + route + ":" + string(scope) + ":" + identity
}
