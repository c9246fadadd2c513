package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront-auth/internal/data/entity"
	"storefront-auth/pkg/apperror"

	"github.com/google/uuid"
)

// memoryUserRepository keeps accounts in process memory. One mutex guards
// every operation, which also serializes MutateByEmail per account.
type memoryUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[uuid.UUID]*entity.User)}
}

func clone(u *entity.User) *entity.User {
	c := *u
	if u.OTPHash != nil {
		h := *u.OTPHash
		c.OTPHash = &h
	}
	if u.OTPExpiresAt != nil {
		t := *u.OTPExpiresAt
		c.OTPExpiresAt = &t
	}
	if u.OTPLockedUntil != nil {
		t := *u.OTPLockedUntil
		c.OTPLockedUntil = &t
	}
	if u.DeletedAt != nil {
		t := *u.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

func (r *memoryUserRepository) find(match func(*entity.User) bool) *entity.User {
	for _, u := range r.users {
		if u.DeletedAt == nil && match(u) {
			return u
		}
	}
	return nil
}

func (r *memoryUserRepository) conflict(user *entity.User) error {
	other := r.find(func(u *entity.User) bool {
		return u.ID != user.ID && (u.Email == user.Email || u.Username == user.Username)
	})
	if other == nil {
		return nil
	}
	if other.Email == user.Email {
		return apperror.Duplicate("email already registered")
	}
	return apperror.Duplicate("username already taken")
}

func (r *memoryUserRepository) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.conflict(user); err != nil {
		return err
	}
	r.users[user.ID] = clone(user)
	return nil
}

func (r *memoryUserRepository) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return nil, nil
	}
	return clone(u), nil
}

func (r *memoryUserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u := r.find(func(u *entity.User) bool { return u.Email == email }); u != nil {
		return clone(u), nil
	}
	return nil, nil
}

func (r *memoryUserRepository) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u := r.find(func(u *entity.User) bool { return u.Username == username }); u != nil {
		return clone(u), nil
	}
	return nil, nil
}

func (r *memoryUserRepository) FindAll(_ context.Context, limit, offset int) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]*entity.User, 0, len(r.users))
	for _, u := range r.users {
		if u.DeletedAt == nil {
			active = append(active, u)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	if offset >= len(active) {
		return nil, nil
	}
	end := offset + limit
	if end > len(active) {
		end = len(active)
	}

	users := make([]*entity.User, 0, end-offset)
	for _, u := range active[offset:end] {
		users = append(users, clone(u))
	}
	return users, nil
}

func (r *memoryUserRepository) CountAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, u := range r.users {
		if u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *memoryUserRepository) Update(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.update(user)
}

func (r *memoryUserRepository) update(user *entity.User) error {
	existing, ok := r.users[user.ID]
	if !ok || existing.DeletedAt != nil {
		return fmt.Errorf("update user %s: %w", user.ID.String(), ErrUserNotFound)
	}
	if err := r.conflict(user); err != nil {
		return err
	}
	r.users[user.ID] = clone(user)
	return nil
}

func (r *memoryUserRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return fmt.Errorf("delete user %s: %w", id.String(), ErrUserNotFound)
	}
	now := time.Now()
	u.DeletedAt = &now
	return nil
}

func (r *memoryUserRepository) MutateByEmail(_ context.Context, email string, fn func(*entity.User) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := r.find(func(u *entity.User) bool { return u.Email == email })
	if u == nil {
		return ErrUserNotFound
	}

	working := clone(u)
	if err := fn(working); err != nil {
		return err
	}
	return r.update(working)
}

func (r *memoryUserRepository) DeleteUnverifiedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, u := range r.users {
		if u.Status == entity.StatusUnverified && u.CreatedAt.Before(before) {
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}
