package app

import "errors"

var (
	// ErrUserNotFound indicates no account exists for the given email.
	ErrUserNotFound     = errors.New("user not found")
	ErrTokenInvalid     = errors.New("reset token is invalid")
	ErrTokenExpired     = errors.New("reset token expired")
	ErrResetRateLimited = errors.New("too many password reset requests")
)
