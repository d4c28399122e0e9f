package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionUnrecoverable marks failures after which the stored session is unusable
	// and the user must authenticate again.
	ErrSessionUnrecoverable = errors.New("session unrecoverable")

	// ErrNoRefreshToken is returned when a 401 arrives but no refresh credential is stored.
	// No refresh call is made in that case.
	ErrNoRefreshToken = fmt.Errorf("%w: no refresh token available", ErrSessionUnrecoverable)

	// ErrInvalidRefreshResponse is the cause of a RefreshError when the backend
	// answered 2xx without a usable access credential.
	ErrInvalidRefreshResponse = errors.New("invalid refresh response")

	// ErrConfig is returned for invalid client configuration.
	ErrConfig = errors.New("invalid client config")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method    string
	Path      string
	Status    int
	Detail    string
	Body      []byte
	RequestID string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, http.StatusText(e.Status), e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// RefreshError is returned in place of the original 401 when the refresh exchange fails.
// The session has already been cleared when a caller sees it.
type RefreshError struct {
	// Status is the refresh response status, or 0 when no response arrived.
	Status int
	Err    error
}

func (e *RefreshError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token refresh failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

// Unwrap exposes both the cause and ErrSessionUnrecoverable to errors.Is/As.
func (e *RefreshError) Unwrap() []error {
	return []error{ErrSessionUnrecoverable, e.Err}
}

// StatusCode extracts the HTTP status from an *APIError in err's chain, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 surfaced to the caller.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
