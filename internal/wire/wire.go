package wire

import (
	"net/http"

	"storefront-auth/internal/adaptor"
	"storefront-auth/internal/data/repository"
	"storefront-auth/internal/usecase"
	"storefront-auth/pkg/middleware"
	"storefront-auth/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and the router.
func Wiring(repo *repository.Repository, config *utils.Config, infra usecase.Infra, logger *zap.Logger) *App {
	infra = infra.WithDefaults(logger)
	service := usecase.NewService(repo, config, infra, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, infra, config, logger),
		Service: service,
	}
}

func setupRouter(handler *adaptor.Handler, infra usecase.Infra, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if config.App.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	wireAuth(r, handler.Auth, infra, logger)
	wireUser(r, handler.User, infra, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.ResponseSuccess(w, "OK", map[string]any{
			"cache": infra.Cache.Enabled(),
		})
	})

	return r
}
