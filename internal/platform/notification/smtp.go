package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPConfig holds the transport settings for outbound alert email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether the transport has enough settings to dial.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// SMTPSender delivers email over plain SMTP with optional AUTH PLAIN.
type SMTPSender struct {
	cfg SMTPConfig
	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTPSender from transport settings.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

// NewEmailSender returns the sender appropriate for the configuration:
// a real SMTP sender when configured, otherwise a DisabledSender so that
// alert sweeps degrade to "skipped" instead of erroring.
func NewEmailSender(cfg SMTPConfig) EmailSender {
	if !cfg.Configured() {
		return DisabledSender{}
	}
	return NewSMTPSender(cfg)
}

// SendEmail composes and delivers a single message. The context is honored
// only between the call and the dial: net/smtp does not support cancellation
// mid-transaction.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email to %s: %w", to, err)
	}
	return nil
}
