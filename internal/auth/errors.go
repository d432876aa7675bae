package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password. The two cases must stay indistinguishable to callers.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrInvalidToken indicates a token failed validation for any reason.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrServiceUnavailable maps store timeouts and connection failures.
	// Auth decisions built on it fail closed.
	ErrServiceUnavailable = errors.New("auth: service unavailable")

	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
)
