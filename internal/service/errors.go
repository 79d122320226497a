package service

import "errors"

var (
	// Validation failures (HTTP 400 at the boundary).
	ErrFieldsRequired     = errors.New("all fields are required")
	ErrAvatarRequired     = errors.New("avatar file is required")
	ErrCoverImageRequired = errors.New("cover image file is required")
	ErrIdentifierRequired = errors.New("username or email is required")
	ErrInvalidOldPassword = errors.New("invalid old password")

	// Authentication failures (HTTP 401).
	ErrInvalidCredentials   = errors.New("invalid user credentials")
	ErrRefreshMissing       = errors.New("unauthorized request")
	ErrRefreshInvalid       = errors.New("invalid refresh token")
	ErrRefreshExpiredOrUsed = errors.New("refresh token is expired or used")

	// ErrUserNotFound maps to HTTP 404 on login.
	ErrUserNotFound = errors.New("user does not exist")

	// ErrUserExists maps to HTTP 409 on registration.
	ErrUserExists = errors.New("user with email or username already exists")

	// ErrTooManyAttempts maps to HTTP 429.
	ErrTooManyAttempts = errors.New("too many attempts, try again later")
)
