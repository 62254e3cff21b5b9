package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrReuseDetected      = errors.New("refresh_reuse_detected")
	ErrExpired            = errors.New("refresh_expired")
	ErrSignupDisabled     = errors.New("signup_disabled")
	ErrSessionNotFound    = errors.New("session_not_found")
)
