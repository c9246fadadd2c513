package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-auth/internal/data/entity"
	"storefront-auth/pkg/apperror"
	"storefront-auth/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned by operations that require an existing account.
var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindAll(ctx context.Context, limit, offset int) ([]*entity.User, error)
	CountAll(ctx context.Context) (int64, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	// MutateByEmail loads the account, applies fn and persists the result as
	// one atomic step. Concurrent calls for the same email are serialized.
	// Nothing is written when fn returns an error.
	MutateByEmail(ctx context.Context, email string, fn func(*entity.User) error) error
	DeleteUnverifiedBefore(ctx context.Context, before time.Time) (int64, error)
}

const uniqueViolation = "23505"

const userColumns = `id, username, name, email, password, role, status, auth_provider,
		       otp_hash, otp_expires_at, otp_attempts, otp_locked_until,
		       created_at, updated_at, deleted_at`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type userRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewUserRepository(db database.PgxIface, log *zap.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log.With(zap.String("repository", "user")),
	}
}

func scanUser(row pgx.Row) (*entity.User, error) {
	var user entity.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&user.AuthProvider,
		&user.OTPHash,
		&user.OTPExpiresAt,
		&user.OTPAttempts,
		&user.OTPLockedUntil,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// duplicateError turns a unique violation into the client-facing error.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case "users_username_active_idx":
		return apperror.Duplicate("username already taken")
	default:
		return apperror.Duplicate("email already registered")
	}
}

func (ur *userRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, username, name, email, password, role, status, auth_provider,
		                   otp_hash, otp_expires_at, otp_attempts, otp_locked_until,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := ur.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.AuthProvider,
		user.OTPHash,
		user.OTPExpiresAt,
		user.OTPAttempts,
		user.OTPLockedUntil,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		ur.log.Error("Failed to create user",
			zap.Error(err),
			zap.String("email", user.Email),
			zap.String("username", user.Username),
		)
		return fmt.Errorf("create user %s: %w", user.Email, err)
	}

	return nil
}

func (ur *userRepository) findOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` AND deleted_at IS NULL`

	user, err := scanUser(ur.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (ur *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := ur.findOne(ctx, "id = $1", id)
	if err != nil {
		ur.log.Error("Failed to find user by ID",
			zap.Error(err),
			zap.String("user_id", id.String()),
		)
		return nil, fmt.Errorf("find user by ID %s: %w", id.String(), err)
	}
	return user, nil
}

func (ur *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	user, err := ur.findOne(ctx, "email = $1", email)
	if err != nil {
		ur.log.Error("Failed to find user by email",
			zap.Error(err),
			zap.String("email", email),
		)
		return nil, fmt.Errorf("find user by email %s: %w", email, err)
	}
	return user, nil
}

func (ur *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	user, err := ur.findOne(ctx, "username = $1", username)
	if err != nil {
		ur.log.Error("Failed to find user by username",
			zap.Error(err),
			zap.String("username", username),
		)
		return nil, fmt.Errorf("find user by username %s: %w", username, err)
	}
	return user, nil
}

// FindAll retrieves paginated list of users
func (ur *userRepository) FindAll(ctx context.Context, limit, offset int) ([]*entity.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := ur.db.Query(ctx, query, limit, offset)
	if err != nil {
		ur.log.Error("Failed to get all users",
			zap.Error(err),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
		)
		return nil, fmt.Errorf("find all users limit %d offset %d: %w", limit, offset, err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			ur.log.Error("Failed to scan user row", zap.Error(err))
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		ur.log.Error("Rows iteration error", zap.Error(err))
		return nil, fmt.Errorf("iterate users rows: %w", err)
	}

	return users, nil
}

func (ur *userRepository) CountAll(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`

	var count int64
	if err := ur.db.QueryRow(ctx, query).Scan(&count); err != nil {
		ur.log.Error("Database error counting users", zap.Error(err))
		return 0, fmt.Errorf("count all users: %w", err)
	}

	return count, nil
}

func (ur *userRepository) Update(ctx context.Context, user *entity.User) error {
	return ur.update(ctx, ur.db, user)
}

func (ur *userRepository) update(ctx context.Context, db execer, user *entity.User) error {
	query := `
		UPDATE users
		SET username = $2, name = $3, email = $4, password = $5, role = $6,
		    status = $7, auth_provider = $8, otp_hash = $9, otp_expires_at = $10,
		    otp_attempts = $11, otp_locked_until = $12, updated_at = $13
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Status,
		user.AuthProvider,
		user.OTPHash,
		user.OTPExpiresAt,
		user.OTPAttempts,
		user.OTPLockedUntil,
		user.UpdatedAt,
	)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		ur.log.Error("Failed to update user",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
		)
		return fmt.Errorf("update user %s: %w", user.ID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("update user %s: %w", user.ID.String(), ErrUserNotFound)
	}

	return nil
}

func (ur *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := ur.db.Exec(ctx, query, id)
	if err != nil {
		ur.log.Error("Failed to delete user",
			zap.Error(err),
			zap.String("id", id.String()),
		)
		return fmt.Errorf("delete user %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete user %s: %w", id.String(), ErrUserNotFound)
	}

	ur.log.Info("User deleted", zap.String("id", id.String()))
	return nil
}

func (ur *userRepository) MutateByEmail(ctx context.Context, email string, fn func(*entity.User) error) error {
	tx, err := ur.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", email, err)
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL FOR UPDATE`

	user, err := scanUser(tx.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		ur.log.Error("Failed to lock user row", zap.Error(err), zap.String("email", email))
		return fmt.Errorf("lock user %s: %w", email, err)
	}

	if err := fn(user); err != nil {
		return err
	}

	if err := ur.update(ctx, tx, user); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		ur.log.Error("Failed to commit user mutation", zap.Error(err), zap.String("email", email))
		return fmt.Errorf("commit user %s: %w", email, err)
	}

	return nil
}

// DeleteUnverifiedBefore hard-deletes accounts that never verified and were
// created before the cutoff.
func (ur *userRepository) DeleteUnverifiedBefore(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM users WHERE status = $1 AND created_at < $2`

	result, err := ur.db.Exec(ctx, query, entity.StatusUnverified, before)
	if err != nil {
		ur.log.Error("Failed to purge unverified users", zap.Error(err), zap.Time("before", before))
		return 0, fmt.Errorf("purge unverified users before %s: %w", before.Format(time.RFC3339), err)
	}

	n := result.RowsAffected()
	ur.log.Info("Unverified users purged", zap.Int64("count", n), zap.Time("before", before))
	return n, nil
}
