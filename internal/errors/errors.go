package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal auth SDK
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrDecode              = errors.New("failed to decode token claims")

	// Transport errors
	ErrNetwork = errors.New("network error")
	ErrServer  = errors.New("server error")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// AuthError carries the last auth-operation failure for display to the
// operator. Message is always set; Code and Status are filled in when the
// backend supplied them.
type AuthError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Status  int    `json:"status,omitempty"`

	err error
}

// NewAuthError builds an AuthError wrapping the sentinel err.
func NewAuthError(err error, message, code string, status int) *AuthError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &AuthError{Message: message, Code: code, Status: status, err: err}
}

func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel so errors.Is works against the taxonomy.
func (e *AuthError) Unwrap() error {
	return e.err
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
