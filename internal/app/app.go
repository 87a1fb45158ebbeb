// Package app implements the password-reset flow on top of the store, the
// mailer, and an optional Redis-backed request throttle.
package app

import (
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"driftchat/internal/ratelimit"
	"driftchat/pkg/auth"
	dmail "driftchat/pkg/mail"
	"driftchat/pkg/store"
)

const (
	defaultResetTokenTTL   = time.Hour
	defaultResetRatePerDay = 5
	resetRateWindow        = 24 * time.Hour
)

// Config holds runtime configuration for the application core.
type Config struct {
	DatabaseURL     string
	Store           store.Store
	Mailer          *dmail.Mailer
	RedisAddr       string
	RedisPassword   string
	ResetTokenTTL   time.Duration
	ResetRatePerDay int
}

// App wires storage, email, and throttling for the password-reset flow.
type App struct {
	store    store.Store
	mailer   *dmail.Mailer
	limiter  *ratelimit.Limiter
	tokenTTL time.Duration
}

// New constructs the application with database-backed storage unless a store
// is supplied. The throttle is optional: without a Redis address, reset
// requests are not rate limited.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	tokenTTL := cfg.ResetTokenTTL
	if tokenTTL <= 0 {
		tokenTTL = defaultResetTokenTTL
	}
	var limiter *ratelimit.Limiter
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		rate := cfg.ResetRatePerDay
		if rate <= 0 {
			rate = defaultResetRatePerDay
		}
		var err error
		limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, "driftchat:reset", rate, resetRateWindow)
		if err != nil {
			return nil, fmt.Errorf("init reset limiter: %w", err)
		}
	}
	return &App{
		store:    dataStore,
		mailer:   cfg.Mailer,
		limiter:  limiter,
		tokenTTL: tokenTTL,
	}, nil
}

// RequestPasswordReset issues a single-use reset token for the account and
// emails the reset link. Unknown emails return ErrUserNotFound; throttled
// requests return ErrResetRateLimited.
func (a *App) RequestPasswordReset(email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if !a.limiter.Allow(email) {
		return ErrResetRateLimited
	}
	user, found, err := a.store.GetUserByEmail(email)
	if err != nil {
		return err
	}
	if !found {
		return ErrUserNotFound
	}
	token, err := auth.NewResetToken()
	if err != nil {
		return err
	}
	if _, err := a.store.CreatePasswordResetToken(user.ID, token, time.Now().UTC().Add(a.tokenTTL)); err != nil {
		return err
	}
	if err := a.mailer.SendPasswordReset(email, token); err != nil {
		return err
	}
	slog.Info("password reset requested", "email", maskEmail(email))
	return nil
}

// ResetPassword consumes a reset token and stores the new password. The token
// is deleted whether it is redeemed or found expired.
func (a *App) ResetPassword(token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenInvalid
	}
	record, found, err := a.store.GetPasswordResetToken(token)
	if err != nil {
		return err
	}
	if !found {
		return ErrTokenInvalid
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		_ = a.store.DeletePasswordResetToken(token)
		return ErrTokenExpired
	}
	if err := a.store.UpdateUserPassword(record.UserID, newPassword); err != nil {
		return err
	}
	if err := a.store.DeletePasswordResetToken(token); err != nil {
		return err
	}
	slog.Info("password reset completed", "userId", record.UserID)
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("email format is invalid")
	}
	return email, nil
}

func maskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	local := parts[0]
	domain := parts[1]
	switch len(local) {
	case 0:
		return "***@" + domain
	case 1, 2:
		return local[:1] + "***@" + domain
	default:
		return local[:1] + "***" + local[len(local)-1:] + "@" + domain
	}
}
