package api

import "errors"

var (
	// ErrInvalidCredentials is returned by Login when the backend rejects the username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidResponse is returned when a credential-issuing call succeeds without both tokens.
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrEmptyUpdate is returned when a profile update has no updatable fields.
	ErrEmptyUpdate = errors.New("no valid fields to update")

	// ErrEmptyImage is returned when Analyze is called without image data.
	ErrEmptyImage = errors.New("empty image")
)
