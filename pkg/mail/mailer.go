// Package mail sends password-reset email over SMTP. Credentials and the
// public frontend URL are injected once via Config instead of being read from
// the environment at call time.
package mail

import (
	"fmt"
	"net/smtp"
	"net/url"
	"strings"
)

// Config carries the SMTP sender account and the frontend base URL embedded
// in reset links.
type Config struct {
	Host        string
	Port        string
	Username    string
	Password    string
	FrontendURL string
}

// SendFunc delivers one message; it matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends application email through one SMTP account.
type Mailer struct {
	cfg  Config
	send SendFunc
}

// New constructs a Mailer from config built at process start.
func New(cfg Config) *Mailer {
	return NewWithSender(cfg, smtp.SendMail)
}

// NewWithSender constructs a Mailer with a custom transport; tests use it to
// capture outgoing messages.
func NewWithSender(cfg Config, send SendFunc) *Mailer {
	return &Mailer{cfg: cfg, send: send}
}

// SendPasswordReset emails the reset link for token to the given address.
func (m *Mailer) SendPasswordReset(to, token string) error {
	msg := m.resetMessage(to, token)
	addr := m.cfg.Host + ":" + m.cfg.Port
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	if err := m.send(addr, auth, m.cfg.Username, []string{to}, msg); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	return nil
}

func (m *Mailer) resetMessage(to, token string) []byte {
	var b strings.Builder
	b.WriteString("From: " + m.cfg.Username + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: Password Reset Request\r\n")
	b.WriteString("\r\n")
	b.WriteString("You requested a password reset. Click the link to reset your password: ")
	b.WriteString(m.ResetLink(token))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ResetLink builds the frontend reset URL embedding the token as a query
// parameter.
func (m *Mailer) ResetLink(token string) string {
	return strings.TrimRight(m.cfg.FrontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}
