package repository

import (
	"storefront-auth/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	User UserRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		User: NewUserRepository(db, log),
	}
}

// NewMemoryRepository backs DB_DRIVER=memory and the test suites.
func NewMemoryRepository() *Repository {
	return &Repository{
		User: NewMemoryUserRepository(),
	}
}
