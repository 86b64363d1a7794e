package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/smartflowhq/growth-engine/pkg/config"
)

// SMTPSender sends email through a plain SMTP relay.
type SMTPSender struct {
	cfg    config.SMTPConfig
	logger *zap.Logger

	// send is swapped out in tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender creates an SMTP-backed EmailSender.
func NewSMTPSender(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		logger: logger.Named("smtp-sender"),
		send:   smtp.SendMail,
	}
}

var _ EmailSender = (*SMTPSender)(nil)

// Configured reports whether the relay is set up.
func (s *SMTPSender) Configured() bool {
	return s.cfg.Host != "" && s.cfg.From != ""
}

// SendEmail delivers one message. An unconfigured relay is a normal
// "not sent" outcome, not an error.
func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string) (bool, error) {
	if !s.Configured() {
		s.logger.Debug("SMTP not configured, skipping email", zap.String("to", to))
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		s.cfg.From, to, subject, body))

	if err := s.send(addr, auth, s.cfg.From, []string{to}, msg); err != nil {
		return false, fmt.Errorf("smtp send failed: %w", err)
	}

	return true, nil
}
