package usecase

import (
	"time"

	"storefront-auth/internal/data/entity"
	"storefront-auth/pkg/utils"
)

type OTPOutcome string

const (
	OTPMatch     OTPOutcome = "match"
	OTPMismatch  OTPOutcome = "mismatch"
	OTPExpired   OTPOutcome = "expired"
	OTPLocked    OTPOutcome = "locked"
	OTPNotIssued OTPOutcome = "not_issued"
)

type OTPPolicy struct {
	Length       int
	TTL          time.Duration
	MaxAttempts  int
	LockDuration time.Duration
}

func DefaultOTPPolicy() OTPPolicy {
	return OTPPolicy{
		Length:       6,
		TTL:          10 * time.Minute,
		MaxAttempts:  5,
		LockDuration: 15 * time.Minute,
	}
}

func OTPPolicyFromConfig(cfg utils.OTPConfig) OTPPolicy {
	p := DefaultOTPPolicy()
	if cfg.Length > 0 {
		p.Length = cfg.Length
	}
	if cfg.ExpiryMinutes > 0 {
		p.TTL = time.Duration(cfg.ExpiryMinutes) * time.Minute
	}
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.LockMinutes > 0 {
		p.LockDuration = time.Duration(cfg.LockMinutes) * time.Minute
	}
	return p
}

type OTPResult struct {
	Outcome OTPOutcome
	// RetryAfter is set for OTPLocked.
	RetryAfter time.Duration
	// AttemptsLeft is set for OTPMismatch.
	AttemptsLeft int
}

// EvaluateOTP classifies a submitted code and applies the resulting state
// change to user. Checks run in order: lock, expiry, comparison. Only a
// comparison consumes an attempt. The mismatch that reaches MaxAttempts
// locks verification and reports OTPLocked.
func EvaluateOTP(user *entity.User, code string, now time.Time, policy OTPPolicy, matches func(code, hash string) bool) OTPResult {
	if user.OTPLockedUntil != nil {
		if now.Before(*user.OTPLockedUntil) {
			return OTPResult{Outcome: OTPLocked, RetryAfter: user.OTPLockedUntil.Sub(now)}
		}
		user.OTPLockedUntil = nil
		user.OTPAttempts = 0
	}

	if user.OTPHash == nil || user.OTPExpiresAt == nil {
		return OTPResult{Outcome: OTPNotIssued}
	}

	if !now.Before(*user.OTPExpiresAt) {
		return OTPResult{Outcome: OTPExpired}
	}

	if matches(code, *user.OTPHash) {
		user.ClearOTP()
		user.Status = entity.StatusVerified
		return OTPResult{Outcome: OTPMatch}
	}

	user.OTPAttempts++
	if user.OTPAttempts >= policy.MaxAttempts {
		lockedUntil := now.Add(policy.LockDuration)
		user.OTPLockedUntil = &lockedUntil
		return OTPResult{Outcome: OTPLocked, RetryAfter: policy.LockDuration}
	}

	return OTPResult{Outcome: OTPMismatch, AttemptsLeft: policy.MaxAttempts - user.OTPAttempts}
}
