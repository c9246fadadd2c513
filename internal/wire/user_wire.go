package wire

import (
	"storefront-auth/internal/adaptor"
	"storefront-auth/internal/usecase"
	"storefront-auth/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireUser mounts the admin dashboard's user management routes.
func wireUser(
	r chi.Router,
	userHandler *adaptor.UserHandler,
	infra usecase.Infra,
	log *zap.Logger,
) {
	r.With(
		middleware.AuthToken(infra.Tokens, log),
		middleware.Admin(log),
	).Route("/api/admin/users", func(r chi.Router) {
		r.Get("/", userHandler.GetAllUsers)       // GET /api/admin/users?page=1&per_page=10
		r.Get("/{id}", userHandler.GetUser)       // GET /api/admin/users/{user-id}
		r.Delete("/{id}", userHandler.DeleteUser) // DELETE /api/admin/users/{user-id}
	})
}
