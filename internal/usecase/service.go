package usecase

import (
	"storefront-auth/internal/data/repository"
	"storefront-auth/pkg/cache"
	"storefront-auth/pkg/identity"
	"storefront-auth/pkg/mailer"
	"storefront-auth/pkg/ratelimit"
	"storefront-auth/pkg/token"
	"storefront-auth/pkg/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Infra groups the collaborators services share.
type Infra struct {
	Tokens   *token.Manager
	Mailer   mailer.Mailer
	Limiter  *ratelimit.Limiter
	Cache    cache.Store
	Identity identity.Verifier
	Clock    clockwork.Clock
}

type Service struct {
	Auth AuthService
	User UserService
}

// WithDefaults fills unset collaborators with their no-op or real-time
// variants.
func (i Infra) WithDefaults(log *zap.Logger) Infra {
	if i.Clock == nil {
		i.Clock = clockwork.NewRealClock()
	}
	if i.Cache == nil {
		i.Cache = cache.NewNoop()
	}
	if i.Limiter == nil {
		i.Limiter = ratelimit.New(i.Cache, ratelimit.Config{}, log)
	}
	return i
}

func NewService(repo *repository.Repository, config *utils.Config, infra Infra, log *zap.Logger) *Service {
	infra = infra.WithDefaults(log)
	return &Service{
		Auth: NewAuthService(repo, config, infra, log),
		User: NewUserService(repo.User, infra.Cache, infra.Clock, log),
	}
}
