package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"storefront-auth/internal/data/entity"
	"storefront-auth/internal/data/repository"
	"storefront-auth/internal/dto/request"
	"storefront-auth/internal/dto/response"
	"storefront-auth/pkg/apperror"
	"storefront-auth/pkg/cache"
	"storefront-auth/pkg/identity"
	"storefront-auth/pkg/mailer"
	"storefront-auth/pkg/ratelimit"
	"storefront-auth/pkg/token"
	"storefront-auth/pkg/utils"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	profileCacheTTL = 60 * time.Second
	mailSendTimeout = time.Minute
	defaultMailWait = 5 * time.Second
)

var usernameUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.RegisterResponse, error)
	VerifyOTP(ctx context.Context, req *request.VerifyOTPRequest) (*response.AuthResponse, error)
	ResendOTP(ctx context.Context, req *request.ResendOTPRequest) error
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	AdminLogin(ctx context.Context, req *request.AdminLoginRequest) (*response.AuthResponse, error)
	ExternalLogin(ctx context.Context, req *request.OAuthLoginRequest) (*response.AuthResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error)
}

type authService struct {
	repo     *repository.Repository
	tokens   *token.Manager
	mailer   mailer.Mailer
	limiter  *ratelimit.Limiter
	cache    cache.Store
	identity identity.Verifier
	clock    clockwork.Clock
	policy   OTPPolicy
	config   *utils.Config
	log      *zap.Logger
}

func NewAuthService(
	repo *repository.Repository,
	config *utils.Config,
	infra Infra,
	log *zap.Logger,
) AuthService {
	return &authService{
		repo:     repo,
		tokens:   infra.Tokens,
		mailer:   infra.Mailer,
		limiter:  infra.Limiter,
		cache:    infra.Cache,
		identity: infra.Identity,
		clock:    infra.Clock,
		policy:   OTPPolicyFromConfig(config.OTP),
		config:   config,
		log:      log.With(zap.String("service", "auth")),
	}
}

func profileKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

func validationError(req any) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return apperror.Validation("validation failed: "+utils.FormatValidationErrors(errs), errs)
	}
	return nil
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.RegisterResponse, error) {
	if err := validationError(req); err != nil {
		s.log.Warn("Register validation failed", zap.Error(err))
		return nil, err
	}

	email := utils.NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	existing, err := s.repo.User.FindByEmail(ctx, email)
	if err != nil {
		s.log.Error("Failed to check email", zap.Error(err), zap.String("email", email))
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		return nil, apperror.Duplicate("email already registered")
	}

	existing, err = s.repo.User.FindByUsername(ctx, username)
	if err != nil {
		s.log.Error("Failed to check username", zap.Error(err), zap.String("username", username))
		return nil, apperror.Internal(err)
	}
	if existing != nil {
		return nil, apperror.Duplicate("username already taken")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	code, codeHash, err := s.newOTP()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &entity.User{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         entity.RoleCustomer,
		Status:       entity.StatusUnverified,
		AuthProvider: entity.ProviderLocal,
	}
	user.IssueOTP(codeHash, now.Add(s.policy.TTL))

	if err := s.repo.User.Create(ctx, user); err != nil {
		if apperror.Is(err, apperror.KindDuplicate) {
			return nil, err
		}
		s.log.Error("Failed to create user", zap.Error(err), zap.String("email", email))
		return nil, apperror.Internal(err)
	}

	s.log.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email))

	return &response.RegisterResponse{
		Email:   user.Email,
		Warning: s.dispatchVerification(ctx, user, code),
	}, nil
}

// dispatchVerification sends the code in the background and waits a bounded
// time for the outcome. A failure or timeout is reported as a warning; the
// account stays in place either way.
func (s *authService) dispatchVerification(ctx context.Context, user *entity.User, code string) string {
	done := make(chan error, 1)
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailSendTimeout)
		defer cancel()
		done <- s.sendOTP(sendCtx, user, code)
	}()

	wait := s.config.Email.WaitTimeout
	if wait <= 0 {
		wait = defaultMailWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warn("Verification email not delivered",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
			return "verification email could not be sent, request a new code"
		}
		return ""
	case <-timer.C:
		s.log.Warn("Verification email still pending",
			zap.String("user_id", user.ID.String()),
			zap.Duration("waited", wait))
		return "verification email is delayed, request a new code if it does not arrive"
	}
}

func (s *authService) VerifyOTP(ctx context.Context, req *request.VerifyOTPRequest) (*response.AuthResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}

	email := utils.NormalizeEmail(req.Email)
	if err := s.limiter.Allow(ctx, ratelimit.RouteVerifyOTP, ratelimit.ScopeEmail, email); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		result OTPResult
		user   *entity.User
	)
	err := s.repo.User.MutateByEmail(ctx, email, func(u *entity.User) error {
		if u.IsVerified() {
			return apperror.Validation("account is already verified", nil)
		}
		result = EvaluateOTP(u, req.OTP, now, s.policy, utils.CheckOTPHash)
		u.UpdatedAt = now
		user = u
		return nil
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.CheckOTPAgainstDummy(req.OTP)
		return nil, apperror.OtpMismatch()
	}
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		return nil, s.internal("Failed to verify OTP", err, zap.String("email", email))
	}

	switch result.Outcome {
	case OTPMatch:
		s.invalidateProfile(ctx, user.ID)
		s.log.Info("Email verified", zap.String("user_id", user.ID.String()))
		return s.authResponse(user, entity.RoleCustomer)
	case OTPMismatch:
		s.log.Warn("OTP mismatch",
			zap.String("user_id", user.ID.String()),
			zap.Int("attempts", user.OTPAttempts),
			zap.Int("attempts_left", result.AttemptsLeft))
		return nil, apperror.OtpMismatch()
	case OTPLocked:
		s.log.Warn("OTP verification locked",
			zap.String("user_id", user.ID.String()),
			zap.Duration("retry_after", result.RetryAfter))
		return nil, apperror.AccountLocked(result.RetryAfter)
	default:
		return nil, apperror.OtpExpired()
	}
}

func (s *authService) ResendOTP(ctx context.Context, req *request.ResendOTPRequest) error {
	if err := validationError(req); err != nil {
		return err
	}

	email := utils.NormalizeEmail(req.Email)
	if err := s.limiter.Allow(ctx, ratelimit.RouteResendOTP, ratelimit.ScopeEmail, email); err != nil {
		return err
	}

	code, codeHash, err := s.newOTP()
	if err != nil {
		return err
	}

	now := s.clock.Now()
	var user *entity.User
	err = s.repo.User.MutateByEmail(ctx, email, func(u *entity.User) error {
		if u.IsVerified() {
			return nil
		}
		if u.IsLocked(now) {
			return apperror.AccountLocked(u.OTPLockedUntil.Sub(now))
		}
		u.OTPLockedUntil = nil
		u.IssueOTP(codeHash, now.Add(s.policy.TTL))
		u.UpdatedAt = now
		user = u
		return nil
	})
	if errors.Is(err, repository.ErrUserNotFound) {
		s.log.Info("Resend requested for unknown email")
		return nil
	}
	if err != nil {
		if isAppError(err) {
			return err
		}
		return s.internal("Failed to reissue OTP", err, zap.String("email", email))
	}
	if user == nil {
		s.log.Info("Resend requested for verified account", zap.String("email", email))
		return nil
	}

	if err := s.sendOTP(ctx, user, code); err != nil {
		s.log.Error("Failed to resend OTP", zap.Error(err), zap.String("user_id", user.ID.String()))
		if apperror.Is(err, apperror.KindUpstreamDelivery) {
			return err
		}
		return apperror.UpstreamDelivery(err)
	}

	s.log.Info("OTP reissued", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}

	email := utils.NormalizeEmail(req.Email)
	if err := s.limiter.Allow(ctx, ratelimit.RouteLogin, ratelimit.ScopeEmail, email); err != nil {
		return nil, err
	}

	user, err := s.checkCredentials(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	if !user.IsVerified() {
		s.log.Warn("Unverified user tried to login", zap.String("user_id", user.ID.String()))
		return nil, apperror.NotVerified()
	}

	s.log.Info("User logged in", zap.String("user_id", user.ID.String()))
	return s.authResponse(user, entity.RoleCustomer)
}

func (s *authService) AdminLogin(ctx context.Context, req *request.AdminLoginRequest) (*response.AuthResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}

	email := utils.NormalizeEmail(req.Email)
	if err := s.limiter.Allow(ctx, ratelimit.RouteAdminLogin, ratelimit.ScopeEmail, email); err != nil {
		return nil, err
	}

	user, err := s.checkCredentials(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}

	keyOK := utils.SecretEqual(req.AdminKey, s.config.Admin.Key)
	if !user.IsAdmin() || !keyOK {
		s.log.Warn("Admin login rejected",
			zap.String("user_id", user.ID.String()),
			zap.Bool("is_admin", user.IsAdmin()))
		return nil, apperror.InvalidCredentials()
	}

	if !user.IsVerified() {
		return nil, apperror.NotVerified()
	}

	s.log.Info("Admin logged in", zap.String("user_id", user.ID.String()))
	return s.authResponse(user, entity.RoleAdmin)
}

func (s *authService) ExternalLogin(ctx context.Context, req *request.OAuthLoginRequest) (*response.AuthResponse, error) {
	if err := validationError(req); err != nil {
		return nil, err
	}
	if s.identity == nil {
		return nil, apperror.New(apperror.KindInvalidToken, "external login is not enabled")
	}

	id, err := s.identity.Verify(ctx, req.IDToken)
	if err != nil {
		s.log.Warn("Identity assertion rejected", zap.Error(err))
		if apperror.KindOf(err) != apperror.KindInternal {
			return nil, err
		}
		return nil, apperror.Wrap(apperror.KindInvalidToken, "invalid identity assertion", err)
	}

	email := utils.NormalizeEmail(id.Email)
	user, err := s.repo.User.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.internal("Failed to find user for external login", err, zap.String("email", email))
	}

	if user == nil {
		user, err = s.createExternalUser(ctx, id, email)
		if err != nil {
			return nil, err
		}
	} else if !user.IsVerified() {
		now := s.clock.Now()
		err = s.repo.User.MutateByEmail(ctx, email, func(u *entity.User) error {
			u.ClearOTP()
			u.Status = entity.StatusVerified
			u.UpdatedAt = now
			user = u
			return nil
		})
		if err != nil {
			return nil, s.internal("Failed to verify user from identity provider", err, zap.String("email", email))
		}
		s.invalidateProfile(ctx, user.ID)
	}

	s.log.Info("External login",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", id.Provider))
	return s.authResponse(user, entity.RoleCustomer)
}

func (s *authService) createExternalUser(ctx context.Context, id *identity.Identity, email string) (*entity.User, error) {
	secret, err := utils.GenerateSecret(32)
	if err != nil {
		return nil, s.internal("Failed to generate password", err)
	}
	passwordHash, err := utils.HashPassword(secret)
	if err != nil {
		return nil, s.internal("Failed to hash password", err)
	}
	suffix, err := utils.GenerateSecret(3)
	if err != nil {
		return nil, s.internal("Failed to generate username", err)
	}

	now := s.clock.Now()
	user := &entity.User{
		Base: entity.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Username:     usernameFromEmail(email) + suffix,
		Name:         id.Name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         entity.RoleCustomer,
		Status:       entity.StatusVerified,
		AuthProvider: id.Provider,
	}

	if err := s.repo.User.Create(ctx, user); err != nil {
		if !apperror.Is(err, apperror.KindDuplicate) {
			return nil, s.internal("Failed to create external user", err, zap.String("email", email))
		}
		// A concurrent login created the account first.
		existing, findErr := s.repo.User.FindByEmail(ctx, email)
		if findErr != nil || existing == nil {
			return nil, s.internal("Failed to load external user", errors.Join(err, findErr), zap.String("email", email))
		}
		return existing, nil
	}

	s.log.Info("User created from identity provider",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", id.Provider))
	return user, nil
}

func (s *authService) Me(ctx context.Context, userID uuid.UUID) (*response.UserResponse, error) {
	key := profileKey(userID)

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached response.UserResponse
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &cached, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("Profile cache read failed", zap.Error(err))
	}

	user, err := s.repo.User.FindByID(ctx, userID)
	if err != nil {
		return nil, s.internal("Failed to get profile", err, zap.String("user_id", userID.String()))
	}
	if user == nil {
		return nil, apperror.InvalidToken()
	}

	resp := response.UserToResponse(user)
	if raw, err := json.Marshal(resp); err == nil {
		if err := s.cache.Set(ctx, key, raw, profileCacheTTL); err != nil {
			s.log.Warn("Profile cache write failed", zap.Error(err))
		}
	}

	return &resp, nil
}

// ==================== HELPER METHODS ====================

// checkCredentials costs one bcrypt comparison whether or not the account
// exists, and reports both failures identically.
func (s *authService) checkCredentials(ctx context.Context, email, password string) (*entity.User, error) {
	user, err := s.repo.User.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.internal("Failed to find user", err, zap.String("email", email))
	}

	if user == nil {
		utils.CheckPasswordAgainstDummy(password)
		s.log.Warn("Login for unknown email")
		return nil, apperror.InvalidCredentials()
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, apperror.InvalidCredentials()
	}

	return user, nil
}

func (s *authService) newOTP() (code, hash string, err error) {
	code, err = utils.GenerateOTP(s.policy.Length)
	if err != nil {
		return "", "", s.internal("Failed to generate OTP", err)
	}
	hash, err = utils.HashOTP(code)
	if err != nil {
		return "", "", s.internal("Failed to hash OTP", err)
	}
	return code, hash, nil
}

func (s *authService) sendOTP(ctx context.Context, user *entity.User, code string) error {
	name := user.Name
	if name == "" {
		name = user.Username
	}

	msg, err := mailer.OTPMessage(s.config.App.Name, user.Email, name, code, s.policy.TTL)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, msg)
}

// authResponse issues a session token with the given scope. Only AdminLogin
// passes RoleAdmin, so an admin token always implies the admin key was checked.
func (s *authService) authResponse(user *entity.User, scope entity.UserRole) (*response.AuthResponse, error) {
	tok, expiresAt, err := s.tokens.Issue(user.ID, string(scope))
	if err != nil {
		return nil, s.internal("Failed to issue token", err, zap.String("user_id", user.ID.String()))
	}

	return &response.AuthResponse{
		Token:     tok,
		ExpiresAt: expiresAt,
		User:      response.UserToResponse(user),
	}, nil
}

func (s *authService) invalidateProfile(ctx context.Context, id uuid.UUID) {
	if err := s.cache.Delete(ctx, profileKey(id)); err != nil {
		s.log.Warn("Profile cache invalidation failed", zap.Error(err), zap.String("user_id", id.String()))
	}
}

func isAppError(err error) bool {
	var appErr *apperror.Error
	return errors.As(err, &appErr)
}

func (s *authService) internal(msg string, err error, fields ...zap.Field) error {
	s.log.Error(msg, append(fields, zap.Error(err))...)
	return apperror.Internal(err)
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	name := usernameUnsafe.ReplaceAllString(strings.ToLower(local), "")
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" {
		name = "user"
	}
	return name
}
