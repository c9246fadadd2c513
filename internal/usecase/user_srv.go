package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-auth/internal/data/entity"
	"storefront-auth/internal/data/repository"
	"storefront-auth/internal/dto/request"
	"storefront-auth/internal/dto/response"
	"storefront-auth/pkg/apperror"
	"storefront-auth/pkg/cache"
	"storefront-auth/pkg/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*response.UserResponse, error)
	GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error)
	DeleteUser(ctx context.Context, userID string) error
	// PurgeUnverified removes accounts still unverified after olderThan.
	// It is an operator action and never runs on its own.
	PurgeUnverified(ctx context.Context, olderThan time.Duration) (int64, error)
	CreateAdmin(ctx context.Context, req *request.RegisterRequest) (*response.UserResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
	cache    cache.Store
	clock    clockwork.Clock
	log      *zap.Logger
}

func NewUserService(userRepo repository.UserRepository, store cache.Store, clock clockwork.Clock, log *zap.Logger) UserService {
	return &userService{
		userRepo: userRepo,
		cache:    store,
		clock:    clock,
		log:      log.With(zap.String("service", "user")),
	}
}

func parseUserID(userID string) (uuid.UUID, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid user ID", map[string]string{"id": "Must be a valid UUID"})
	}
	return id, nil
}

func (us *userService) GetProfile(ctx context.Context, userID string) (*response.UserResponse, error) {
	id, err := parseUserID(userID)
	if err != nil {
		return nil, err
	}

	user, err := us.userRepo.FindByID(ctx, id)
	if err != nil {
		us.log.Error("Failed to find user", zap.Error(err), zap.String("user_id", userID))
		return nil, apperror.Internal(err)
	}
	if user == nil {
		return nil, apperror.NotFound("user not found")
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (us *userService) GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error) {
	if req.Page < 1 {
		req.Page = 1
	}
	req.PerPage = req.Limit()

	users, err := us.userRepo.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		us.log.Error("Failed to get all users",
			zap.Error(err),
			zap.Int("page", req.Page),
			zap.Int("per_page", req.PerPage),
		)
		return nil, apperror.Internal(err)
	}

	total, err := us.userRepo.CountAll(ctx)
	if err != nil {
		us.log.Error("Failed to count users", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	userResponses := make([]response.UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = response.UserToResponse(user)
	}

	us.log.Info("Users retrieved",
		zap.Int("count", len(users)),
		zap.Int64("total", total),
		zap.Int("page", req.Page),
		zap.Int("per_page", req.PerPage),
		zap.Int("total_pages", utils.CalculateTotalPages(total, req.PerPage)),
	)

	return response.NewPaginatedResponse(userResponses, req.Page, req.PerPage, total), nil
}

func (us *userService) DeleteUser(ctx context.Context, userID string) error {
	id, err := parseUserID(userID)
	if err != nil {
		return err
	}

	if err := us.userRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.NotFound("user not found")
		}
		us.log.Error("Failed to delete user", zap.Error(err), zap.String("id", userID))
		return apperror.Internal(err)
	}

	if err := us.cache.Delete(ctx, profileKey(id)); err != nil {
		us.log.Warn("Profile cache invalidation failed", zap.Error(err), zap.String("id", userID))
	}

	us.log.Info("User deleted", zap.String("user_id", id.String()))
	return nil
}

func (us *userService) PurgeUnverified(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, apperror.Validation("older-than must be positive", nil)
	}

	cutoff := us.clock.Now().Add(-olderThan)
	n, err := us.userRepo.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		us.log.Error("Failed to purge unverified users", zap.Error(err))
		return 0, apperror.Internal(err)
	}

	us.log.Info("Purged unverified users", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	return n, nil
}

// CreateAdmin provisions a verified admin account for the operator CLI.
func (us *userService) CreateAdmin(ctx context.Context, req *request.RegisterRequest) (*response.UserResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("validation failed: "+utils.FormatValidationErrors(errs), errs)
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		us.log.Error("Failed to hash password", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	now := us.clock.Now()
	user := &entity.User{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:     strings.TrimSpace(req.Username),
		Name:         strings.TrimSpace(req.Name),
		Email:        utils.NormalizeEmail(req.Email),
		PasswordHash: hash,
		Role:         entity.RoleAdmin,
		Status:       entity.StatusVerified,
		AuthProvider: entity.ProviderLocal,
	}

	if err := us.userRepo.Create(ctx, user); err != nil {
		if apperror.Is(err, apperror.KindDuplicate) {
			return nil, err
		}
		us.log.Error("Failed to create admin", zap.Error(err), zap.String("email", user.Email))
		return nil, apperror.Internal(err)
	}

	us.log.Info("Admin created", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
	resp := response.UserToResponse(user)
	return &resp, nil
}
