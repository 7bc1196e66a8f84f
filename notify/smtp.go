package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
)

// SMTP sends plain-text mail over an authenticated SMTP submission port.
type SMTP struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
	Logger   *slog.Logger
}

func (s *SMTP) Notify(_ context.Context, subject, body string) error {
	msg := buildMessage(s.From, s.To, subject, body)

	auth := smtp.PlainAuth("", s.User, s.Password, s.Host)
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	if err := smtp.SendMail(addr, auth, s.From, []string{s.To}, msg); err != nil {
		return fmt.Errorf("notify: smtp send to %s: %w", s.To, err)
	}
	if s.Logger != nil {
		s.Logger.Info("notify: email sent via smtp", "to", s.To, "subject", subject)
	}
	return nil
}

// buildMessage assembles RFC 5322 headers plus a plain-text body.
func buildMessage(from, to, subject, body string) []byte {
	headers := []struct{ k, v string }{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", `text/plain; charset="UTF-8"`},
	}
	msg := ""
	for _, h := range headers {
		msg += fmt.Sprintf("%s: %s\r\n", h.k, h.v)
	}
	msg += "\r\n" + body
	return []byte(msg)
}
