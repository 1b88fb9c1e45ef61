// Package mailer dispatches user-facing notifications. The log mailer is
// the only implementation today; it records the send in the structured log
// instead of talking to an SMTP relay.
package mailer

import (
	"context"
	"log/slog"

	"github.com/cinesync/cinesync/pkg/logger"
)

// Mailer sends a notification to a user.
type Mailer interface {
	SendWelcome(ctx context.Context, userID int64, email string) error
}

// LogMailer writes each notification to the structured log.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{
		logger: logger.WithComponent("mailer"),
	}
}

// SendWelcome logs the welcome notification for a newly registered user.
func (m *LogMailer) SendWelcome(ctx context.Context, userID int64, email string) error {
	m.logger.Info("sending welcome email",
		"user_id", userID,
		"email", email,
		"body", "Welcome to CineSync! We are happy to see you.",
	)
	return nil
}
