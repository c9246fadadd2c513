package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind is the stable error code returned to clients.
type Kind string

const (
	KindValidation         Kind = "ValidationError"
	KindDuplicate          Kind = "DuplicateError"
	KindInvalidCredentials Kind = "InvalidCredentialsError"
	KindNotVerified        Kind = "NotVerifiedError"
	KindOtpMismatch        Kind = "OtpMismatchError"
	KindOtpExpired         Kind = "OtpExpiredError"
	KindAccountLocked      Kind = "AccountLockedError"
	KindRateLimited        Kind = "RateLimitedError"
	KindInvalidToken       Kind = "InvalidTokenError"
	KindUpstreamDelivery   Kind = "UpstreamDeliveryError"
	KindNotFound           Kind = "NotFoundError"
	KindForbidden          Kind = "ForbiddenError"
	KindInternal           Kind = "InternalError"
)

var statusByKind = map[Kind]int{
	KindValidation:         http.StatusBadRequest,
	KindDuplicate:          http.StatusConflict,
	KindInvalidCredentials: http.StatusUnauthorized,
	KindNotVerified:        http.StatusForbidden,
	KindOtpMismatch:        http.StatusBadRequest,
	KindOtpExpired:         http.StatusGone,
	KindAccountLocked:      http.StatusLocked,
	KindRateLimited:        http.StatusTooManyRequests,
	KindInvalidToken:       http.StatusUnauthorized,
	KindUpstreamDelivery:   http.StatusBadGateway,
	KindNotFound:           http.StatusNotFound,
	KindForbidden:          http.StatusForbidden,
	KindInternal:           http.StatusInternalServerError,
}

// Error is the typed error returned by services. Msg is safe to show to
// clients; Err carries the internal cause and is only ever logged.
type Error struct {
	Kind       Kind
	Msg        string
	RetryAfter time.Duration
	Fields     map[string]string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	if code, ok := statusByKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1 when set.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Fields: fields}
}

func Duplicate(msg string) *Error {
	return New(KindDuplicate, msg)
}

// InvalidCredentials is deliberately generic so callers cannot tell an
// unknown account from a wrong password.
func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, "invalid credentials")
}

func NotVerified() *Error {
	return New(KindNotVerified, "email address is not verified")
}

func OtpMismatch() *Error {
	return New(KindOtpMismatch, "invalid verification code")
}

func OtpExpired() *Error {
	return New(KindOtpExpired, "verification code has expired, request a new one")
}

func AccountLocked(retryAfter time.Duration) *Error {
	return &Error{Kind: KindAccountLocked, Msg: "too many failed attempts, verification is temporarily locked", RetryAfter: retryAfter}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Msg: "too many requests, slow down", RetryAfter: retryAfter}
}

func InvalidToken() *Error {
	return New(KindInvalidToken, "invalid or expired token")
}

func UpstreamDelivery(err error) *Error {
	return Wrap(KindUpstreamDelivery, "verification email could not be delivered", err)
}

func NotFound(msg string) *Error {
	return New(KindNotFound, msg)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "internal error", err)
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
