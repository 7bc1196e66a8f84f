package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/hazyhaar/fundwatch/config"
)

// Mailgun sends mail through the Mailgun HTTP API.
type Mailgun struct {
	mg         *mailgun.MailgunImpl
	from       string
	fromName   string
	to         string
	logger     *slog.Logger
	sendWindow time.Duration
}

// NewMailgun creates a Mailgun notifier from email configuration.
func NewMailgun(cfg config.EmailConfig, logger *slog.Logger) *Mailgun {
	return &Mailgun{
		mg:         mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
		from:       cfg.From,
		fromName:   cfg.FromName,
		to:         cfg.To,
		logger:     logger,
		sendWindow: 20 * time.Second,
	}
}

func (m *Mailgun) Notify(ctx context.Context, subject, body string) error {
	from := m.from
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}
	msg := m.mg.NewMessage(from, subject, body, m.to)

	sendCtx, cancel := context.WithTimeout(ctx, m.sendWindow)
	defer cancel()

	resp, id, err := m.mg.Send(sendCtx, msg)
	if err != nil {
		return fmt.Errorf("notify: mailgun send to %s: %w", m.to, err)
	}
	if m.logger != nil {
		m.logger.Info("notify: email sent via mailgun", "to", m.to, "id", id, "resp", resp)
	}
	return nil
}
