package wire

import (
	"storefront-auth/internal/adaptor"
	"storefront-auth/internal/usecase"
	"storefront-auth/pkg/middleware"
	"storefront-auth/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireAuth(
	r chi.Router,
	authHandler *adaptor.AuthHandler,
	infra usecase.Infra,
	log *zap.Logger,
) {
	limited := func(route string) chi.Router {
		return r.With(middleware.RateLimit(infra.Limiter, route, log))
	}

	// ==================== PUBLIC ROUTES ====================
	limited(ratelimit.RouteRegister).Post("/api/register", authHandler.Register)
	limited(ratelimit.RouteVerifyOTP).Post("/api/verify-otp", authHandler.VerifyOTP)
	limited(ratelimit.RouteResendOTP).Post("/api/resend-otp", authHandler.ResendOTP)
	limited(ratelimit.RouteLogin).Post("/api/login", authHandler.Login)
	limited(ratelimit.RouteAdminLogin).Post("/api/admin-login", authHandler.AdminLogin)
	limited(ratelimit.RouteLogin).Post("/api/oauth-login", authHandler.OAuthLogin)

	// ==================== PROTECTED ROUTES ====================
	r.With(middleware.AuthToken(infra.Tokens, log)).Get("/api/me", authHandler.Me)
}
