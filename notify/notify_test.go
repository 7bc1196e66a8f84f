package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/fundwatch/config"
)

func TestNew_SMTPComplete(t *testing.T) {
	n := New(config.EmailConfig{
		Provider:     "smtp",
		To:           "ops@example.com",
		From:         "fundwatch@example.com",
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUser:     "fundwatch",
		SMTPPassword: "hunter2",
	}, nil)

	s, ok := n.(*SMTP)
	if !ok {
		t.Fatalf("want *SMTP, got %T", n)
	}
	if s.Host != "smtp.example.com" || s.To != "ops@example.com" {
		t.Fatalf("smtp fields: %+v", s)
	}
}

func TestNew_IncompleteSMTPFallsBackToMock(t *testing.T) {
	n := New(config.EmailConfig{
		Provider: "smtp",
		To:       "ops@example.com",
		// no host/user/password
	}, nil)
	if _, ok := n.(*Mock); !ok {
		t.Fatalf("want *Mock, got %T", n)
	}
}

func TestNew_MailgunComplete(t *testing.T) {
	n := New(config.EmailConfig{
		Provider:      "mailgun",
		To:            "ops@example.com",
		From:          "fundwatch@example.com",
		MailgunDomain: "mg.example.com",
		MailgunAPIKey: "key-123",
	}, nil)
	if _, ok := n.(*Mailgun); !ok {
		t.Fatalf("want *Mailgun, got %T", n)
	}
}

func TestNew_IncompleteMailgunFallsBackToMock(t *testing.T) {
	n := New(config.EmailConfig{Provider: "mailgun", To: "ops@example.com"}, nil)
	if _, ok := n.(*Mock); !ok {
		t.Fatalf("want *Mock, got %T", n)
	}
}

func TestNew_DefaultIsMock(t *testing.T) {
	n := New(config.EmailConfig{Provider: "mock"}, nil)
	if _, ok := n.(*Mock); !ok {
		t.Fatalf("want *Mock, got %T", n)
	}
}

func TestMock_CapturesMessages(t *testing.T) {
	m := &Mock{}
	if err := m.Notify(context.Background(), "subject", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(m.Sent) != 1 || m.Sent[0].Subject != "subject" || m.Sent[0].Body != "body" {
		t.Fatalf("sent: %+v", m.Sent)
	}
}

func TestBuildMessage(t *testing.T) {
	msg := string(buildMessage("a@x.com", "b@y.com", "hello", "world"))

	for _, want := range []string{
		"From: a@x.com\r\n",
		"To: b@y.com\r\n",
		"Subject: hello\r\n",
		`Content-Type: text/plain; charset="UTF-8"` + "\r\n",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
	if !strings.HasSuffix(msg, "\r\nworld") {
		t.Fatalf("body placement wrong:\n%s", msg)
	}
}
