package mailer

import (
	"context"
	"time"

	"storefront-auth/pkg/apperror"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// RetryMailer retries a fixed number of times with exponential backoff.
// A terminal failure is returned as UpstreamDeliveryError.
type RetryMailer struct {
	next    Mailer
	retries uint64
	base    time.Duration
	log     *zap.Logger
}

func NewRetryMailer(next Mailer, retries int, base time.Duration, log *zap.Logger) *RetryMailer {
	if retries < 0 {
		retries = 0
	}
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	return &RetryMailer{
		next:    next,
		retries: uint64(retries),
		base:    base,
		log:     log.With(zap.String("component", "mailer")),
	}
}

func (m *RetryMailer) Send(ctx context.Context, msg Message) error {
	backoff := retry.WithMaxRetries(m.retries, retry.NewExponential(m.base))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := m.next.Send(ctx, msg); err != nil {
			m.log.Warn("Email delivery attempt failed",
				zap.String("to", msg.To),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		m.log.Error("Email delivery failed",
			zap.String("to", msg.To),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return apperror.UpstreamDelivery(err)
	}

	return nil
}
