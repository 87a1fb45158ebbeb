package app

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"driftchat/pkg/auth"
	"driftchat/pkg/mail"
	"driftchat/pkg/store"
)

type sentMail struct {
	to   string
	body string
}

func newTestApp(t *testing.T, sent *[]sentMail, redisAddr string) (*App, *store.MemoryStore) {
	t.Helper()
	mailer := mail.NewWithSender(mail.Config{
		Host:        "smtp.example.com",
		Port:        "587",
		Username:    "noreply@example.com",
		FrontendURL: "https://chat.example.com",
	}, func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		*sent = append(*sent, sentMail{to: to[0], body: string(msg)})
		return nil
	})
	memStore := store.NewMemoryStore()
	a, err := New(Config{
		Store:         memStore,
		Mailer:        mailer,
		RedisAddr:     redisAddr,
		ResetTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, memStore
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	var sent []sentMail
	a, _ := newTestApp(t, &sent, "")

	err := a.RequestPasswordReset("nobody@example.com")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got: %v", err)
	}
	if len(sent) != 0 {
		t.Fatalf("no email expected for unknown account")
	}
}

func TestRequestPasswordResetSendsTokenLink(t *testing.T) {
	var sent []sentMail
	a, memStore := newTestApp(t, &sent, "")
	if _, err := memStore.CreateUser("alice@example.com", "old-pass"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := a.RequestPasswordReset("Alice@Example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(sent) != 1 || sent[0].to != "alice@example.com" {
		t.Fatalf("expected one email to the normalized address, got %+v", sent)
	}
	if !strings.Contains(sent[0].body, "https://chat.example.com/reset-password?token=") {
		t.Fatalf("email is missing the reset link: %q", sent[0].body)
	}
}

func TestRequestPasswordResetThrottled(t *testing.T) {
	redisSrv := miniredis.RunT(t)
	var sent []sentMail
	mailer := mail.NewWithSender(mail.Config{FrontendURL: "https://chat.example.com"},
		func(_ string, _ smtp.Auth, _ string, to []string, msg []byte) error {
			sent = append(sent, sentMail{to: to[0], body: string(msg)})
			return nil
		})
	memStore := store.NewMemoryStore()
	if _, err := memStore.CreateUser("alice@example.com", "pw"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	a, err := New(Config{
		Store:           memStore,
		Mailer:          mailer,
		RedisAddr:       redisSrv.Addr(),
		ResetRatePerDay: 1,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	if err := a.RequestPasswordReset("alice@example.com"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := a.RequestPasswordReset("alice@example.com"); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("expected ErrResetRateLimited, got: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("throttled request must not send email, got %d", len(sent))
	}
}

func TestResetPasswordConsumesToken(t *testing.T) {
	var sent []sentMail
	a, memStore := newTestApp(t, &sent, "")
	user, err := memStore.CreateUser("alice@example.com", "old-pass")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := a.RequestPasswordReset("alice@example.com"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	token := tokenFromBody(t, sent[0].body)

	if err := a.ResetPassword(token, "new-pass"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	updated, found, err := memStore.GetUserByID(user.ID)
	if err != nil || !found {
		t.Fatalf("get user: found=%v err=%v", found, err)
	}
	if !auth.CheckPassword("new-pass", updated.PasswordHash) {
		t.Fatalf("new password should verify after reset")
	}
	if auth.CheckPassword("old-pass", updated.PasswordHash) {
		t.Fatalf("old password should be gone")
	}

	// Single-use: redeeming the same token again fails.
	if err := a.ResetPassword(token, "another-pass"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid on reuse, got: %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	var sent []sentMail
	a, memStore := newTestApp(t, &sent, "")
	user, err := memStore.CreateUser("alice@example.com", "old-pass")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := memStore.CreatePasswordResetToken(user.ID, "stale-token", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("create token: %v", err)
	}

	if err := a.ResetPassword("stale-token", "new-pass"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got: %v", err)
	}
	// Expired tokens are removed on sight.
	if _, found, _ := memStore.GetPasswordResetToken("stale-token"); found {
		t.Fatalf("expired token should have been deleted")
	}
}

func TestResetPasswordUnknownToken(t *testing.T) {
	var sent []sentMail
	a, _ := newTestApp(t, &sent, "")
	if err := a.ResetPassword("no-such-token", "pw"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got: %v", err)
	}
	if err := a.ResetPassword("  ", "pw"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for blank token, got: %v", err)
	}
}

func tokenFromBody(t *testing.T, body string) string {
	t.Helper()
	marker := "token="
	idx := strings.Index(body, marker)
	if idx < 0 {
		t.Fatalf("no token in email body: %q", body)
	}
	token := body[idx+len(marker):]
	return strings.TrimSpace(token)
}
