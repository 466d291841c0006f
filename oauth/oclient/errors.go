package oclient

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the credentials are missing a
	// field or cannot be read.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrStateMismatch is returned when the redirect carries a state that
	// was not issued by this flow.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrTokenDecrypt is returned when an encrypted token file cannot be
	// opened with the configured passphrase.
	ErrTokenDecrypt = errors.New("failed to decrypt token")
)

// TokenExchangeError is returned when the token endpoint rejects the
// authorization code, or when the provider redirects back with an error.
type TokenExchangeError struct {
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *TokenExchangeError) Error() string {
	msg := "token exchange failed"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
	}
	if e.Description != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Description)
	}
	if e.Err != nil && e.Code == "" {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
