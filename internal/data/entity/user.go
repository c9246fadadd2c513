package entity

import "time"

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAdmin    UserRole = "admin"
)

type UserStatus string

const (
	StatusUnverified UserStatus = "unverified"
	StatusVerified   UserStatus = "verified"
)

// ProviderLocal marks accounts that registered with a password.
const ProviderLocal = "local"

type User struct {
	Base
	Username       string     `db:"username"`
	Name           string     `db:"name"`
	Email          string     `db:"email"`
	PasswordHash   string     `db:"password"`
	Role           UserRole   `db:"role"`
	Status         UserStatus `db:"status"`
	AuthProvider   string     `db:"auth_provider"`
	OTPHash        *string    `db:"otp_hash"`
	OTPExpiresAt   *time.Time `db:"otp_expires_at"`
	OTPAttempts    int        `db:"otp_attempts"`
	OTPLockedUntil *time.Time `db:"otp_locked_until"`
}

func (u *User) IsVerified() bool {
	return u.Status == StatusVerified
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsLocked reports whether OTP verification is locked at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.OTPLockedUntil != nil && now.Before(*u.OTPLockedUntil)
}

// ClearOTP drops every piece of OTP state.
func (u *User) ClearOTP() {
	u.OTPHash = nil
	u.OTPExpiresAt = nil
	u.OTPAttempts = 0
	u.OTPLockedUntil = nil
}

// IssueOTP replaces the pending code. The lock is left untouched.
func (u *User) IssueOTP(hash string, expiresAt time.Time) {
	u.OTPHash = &hash
	u.OTPExpiresAt = &expiresAt
	u.OTPAttempts = 0
}
