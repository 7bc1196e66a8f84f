// Package notify delivers escalation messages to the operator.
//
// The notifier knows nothing about prefixing or gating policy: callers
// decide whether a message is worth sending and what the subject looks like.
// A delivery failure is the end of the line, logged by the caller and never
// escalated further.
package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hazyhaar/fundwatch/config"
)

// Notifier sends one message to the configured operator.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// New builds a Notifier for the configured provider. Incomplete provider
// configuration falls back to the mock notifier with a warning, so a half
// configured deployment degrades to logging instead of erroring every run.
func New(cfg config.EmailConfig, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Provider) {
	case "smtp":
		if cfg.SMTPHost == "" || cfg.SMTPUser == "" || cfg.SMTPPassword == "" || cfg.From == "" {
			logger.Warn("notify: smtp configuration incomplete, falling back to mock")
			return &Mock{Logger: logger}
		}
		return &SMTP{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			To:       cfg.To,
			Logger:   logger,
		}
	case "mailgun":
		if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.From == "" {
			logger.Warn("notify: mailgun configuration incomplete, falling back to mock")
			return &Mock{Logger: logger}
		}
		return NewMailgun(cfg, logger)
	default:
		return &Mock{Logger: logger}
	}
}

// Mock logs the message instead of sending it.
type Mock struct {
	Logger *slog.Logger

	// Sent collects every delivered message. Used in tests.
	Sent []Message
}

// Message is one captured mock delivery.
type Message struct {
	Subject string
	Body    string
}

func (m *Mock) Notify(_ context.Context, subject, body string) error {
	if m.Logger != nil {
		m.Logger.Info("notify: mock delivery", "subject", subject, "body_len", len(body))
	}
	m.Sent = append(m.Sent, Message{Subject: subject, Body: body})
	return nil
}
