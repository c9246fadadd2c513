package utils

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when an account does not exist so that the
// unknown-account path costs one bcrypt comparison like the real one.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), bcrypt.DefaultCost)

// otpCost is lower than passwords: codes live for minutes and attempts are capped.
const otpCost = bcrypt.MinCost + 2

var dummyOTPHash, _ = bcrypt.GenerateFromPassword([]byte("000000"), otpCost)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CheckPasswordAgainstDummy burns the same work as CheckPasswordHash and
// always reports false.
func CheckPasswordAgainstDummy(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
	return false
}

// HashOTP hashes a one-time code.
func HashOTP(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), otpCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckOTPHash(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

// CheckOTPAgainstDummy costs the same as CheckOTPHash and always reports false.
func CheckOTPAgainstDummy(code string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyOTPHash, []byte(code))
	return false
}

// SecretEqual compares two secrets in constant time. Both sides are digested
// first so the comparison does not short-circuit on length.
func SecretEqual(provided, expected string) bool {
	if expected == "" {
		return false
	}
	p := sha256.Sum256([]byte(provided))
	e := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(p[:], e[:]) == 1
}
