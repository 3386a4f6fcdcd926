package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrGameNotFound       = errors.New("game not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidMode        = errors.New("invalid game mode")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrGameNotFound)
}
