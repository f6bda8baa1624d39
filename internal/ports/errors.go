package ports

import "errors"

// Sentinel errors returned (possibly wrapped) by port implementations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUserNotFound    = errors.New("user not found")
)
