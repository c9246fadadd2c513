package middleware

import (
	"errors"
	"net/http"

	"storefront-auth/pkg/apperror"
	"storefront-auth/pkg/ratelimit"
	"storefront-auth/pkg/utils"

	"go.uber.org/zap"
)

// RateLimit enforces the per-IP window for route before the handler runs.
func RateLimit(limiter *ratelimit.Limiter, route string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r)
			if err := limiter.Allow(r.Context(), route, ratelimit.ScopeIP, ip); err != nil {
				var appErr *apperror.Error
				if errors.As(err, &appErr) {
					logger.Warn("Request rate limited",
						zap.String("route", route),
						zap.String("ip", ip))
					utils.ResponseAppError(w, appErr)
					return
				}
				utils.ResponseInternalError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
