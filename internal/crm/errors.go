package crm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthentication marks a CRM rejection of the supplied credentials or session.
var ErrAuthentication = errors.New("crm authentication failed")

// authErrorCodes are CRM error codes that mean the credentials or session are bad.
var authErrorCodes = map[string]bool{
	"INVALID_LOGIN":                 true,
	"INVALID_SESSION_ID":            true,
	"LOGIN_MUST_USE_SECURITY_TOKEN": true,
	"INVALID_CLIENT":                true,
	"PASSWORD_LOCKOUT":              true,
}

// APIError is a non-success response from the CRM.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("crm api error (HTTP %d) %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("crm api error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Unwrap exposes ErrAuthentication for 401 responses and known login/session codes.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || authErrorCodes[e.Code] {
		return ErrAuthentication
	}
	return nil
}

// NewAuthError wraps a login rejection.
func NewAuthError(code, message string) error {
	return fmt.Errorf("%w: %s: %s", ErrAuthentication, code, message)
}
