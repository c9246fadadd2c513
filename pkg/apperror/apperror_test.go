package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("bad", nil), http.StatusBadRequest},
		{Duplicate("taken"), http.StatusConflict},
		{InvalidCredentials(), http.StatusUnauthorized},
		{NotVerified(), http.StatusForbidden},
		{OtpMismatch(), http.StatusBadRequest},
		{OtpExpired(), http.StatusGone},
		{AccountLocked(time.Minute), http.StatusLocked},
		{RateLimited(time.Minute), http.StatusTooManyRequests},
		{InvalidToken(), http.StatusUnauthorized},
		{UpstreamDelivery(errors.New("smtp down")), http.StatusBadGateway},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Status(), string(tc.err.Kind))
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("verify: %w", OtpExpired())

	assert.Equal(t, KindOtpExpired, KindOf(err))
	assert.True(t, Is(err, KindOtpExpired))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 0, RateLimited(0).RetryAfterSeconds())
	assert.Equal(t, 1, RateLimited(10*time.Millisecond).RetryAfterSeconds())
	assert.Equal(t, 61, AccountLocked(60*time.Second+time.Millisecond).RetryAfterSeconds())
}
