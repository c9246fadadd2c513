package wire

import (
	"context"
	"fmt"
	"time"

	"storefront-auth/internal/data/migrations"
	"storefront-auth/internal/data/repository"
	"storefront-auth/internal/usecase"
	"storefront-auth/pkg/cache"
	"storefront-auth/pkg/database"
	"storefront-auth/pkg/identity"
	"storefront-auth/pkg/mailer"
	"storefront-auth/pkg/ratelimit"
	"storefront-auth/pkg/token"
	"storefront-auth/pkg/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const mailRetryBase = 500 * time.Millisecond

// OpenRepository connects the configured storage driver and applies
// migrations when enabled. The returned func releases the connection.
func OpenRepository(ctx context.Context, config *utils.Config, logger *zap.Logger) (*repository.Repository, func(), error) {
	if config.Database.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return repository.NewMemoryRepository(), func() {}, nil
	}

	if config.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, config.Database.DSN(), migrations.FS); err != nil {
			return nil, nil, err
		}
		logger.Info("Database migrations applied")
	}

	db, err := database.InitDB(ctx, config.Database)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Database connected successfully")

	return repository.NewRepository(db, logger), db.Close, nil
}

// BuildInfra assembles the shared collaborators from config.
func BuildInfra(ctx context.Context, config *utils.Config, logger *zap.Logger) (usecase.Infra, func(), error) {
	clock := clockwork.NewRealClock()

	tokens, err := token.NewManager(token.Config{
		Secret: config.JWT.Secret,
		Issuer: config.JWT.Issuer,
		TTL:    time.Duration(config.JWT.ExpiryHours) * time.Hour,
	}, clock)
	if err != nil {
		return usecase.Infra{}, nil, fmt.Errorf("token manager: %w", err)
	}

	store := cache.Connect(ctx, config.Redis.Addr, config.Redis.Password, config.Redis.DB, logger)

	mail, err := newMailer(config, logger)
	if err != nil {
		_ = store.Close()
		return usecase.Infra{}, nil, err
	}

	infra := usecase.Infra{
		Tokens: tokens,
		Mailer: mail,
		Limiter: ratelimit.New(store, ratelimit.Config{
			Max:    config.RateLimit.Max,
			Window: time.Duration(config.RateLimit.WindowMinutes) * time.Minute,
		}, logger),
		Cache: store,
		Identity: identity.NewJWTVerifier(identity.Config{
			Provider: config.Identity.Provider,
			Secret:   config.Identity.Secret,
			Issuer:   config.Identity.Issuer,
			Audience: config.Identity.Audience,
		}, clock),
		Clock: clock,
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close cache", zap.Error(err))
		}
	}
	return infra, cleanup, nil
}

func newMailer(config *utils.Config, logger *zap.Logger) (mailer.Mailer, error) {
	if config.Email.Host == "" {
		if config.IsProduction() {
			return nil, fmt.Errorf("SMTP_HOST is required in production")
		}
		logger.Warn("SMTP not configured, verification codes will be written to the server log")
		return mailer.NewLogMailer(logger), nil
	}

	smtp := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     config.Email.Host,
		Port:     config.Email.Port,
		User:     config.Email.User,
		Password: config.Email.Password,
		From:     config.Email.From,
	})
	return mailer.NewRetryMailer(smtp, config.Email.Retries, mailRetryBase, logger), nil
}
