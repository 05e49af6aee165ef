package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/sokomart-dev/sokomart-backend/pkg/config"
	"github.com/sokomart-dev/sokomart-backend/pkg/logger"
)

// Mailer delivers a copy of a notification outside the app. Implementations
// must be safe to fail: callers log and move on.
type Mailer interface {
	Send(ctx context.Context, userID uuid.UUID, subject, body string) error
}

// LogMailer writes would-be emails to the structured log. It stands in for
// a real provider in environments without outbound mail.
type LogMailer struct {
	cfg  config.MailConfig
	logg *logger.Logger
}

func NewLogMailer(cfg config.MailConfig, logg *logger.Logger) *LogMailer {
	return &LogMailer{cfg: cfg, logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, userID uuid.UUID, subject, body string) error {
	if m.logg == nil {
		return nil
	}
	ctx = m.logg.WithFields(ctx, map[string]any{
		"mail_to":      userID.String(),
		"mail_from":    m.cfg.DefaultFrom,
		"mail_subject": subject,
		"mail_body":    body,
	})
	m.logg.Info(ctx, "mail.logged")
	return nil
}
