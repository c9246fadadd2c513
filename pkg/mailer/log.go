package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogMailer writes messages to the server log instead of sending them. It is
// the operator side channel for local testing when no SMTP relay is
// configured and must not be used in production.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log.With(zap.String("component", "mailer"))}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Warn("Email not sent (no SMTP relay configured)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text),
	)
	return nil
}
