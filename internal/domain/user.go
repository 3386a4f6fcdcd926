package domain

import (
	"fmt"
	"time"
)

// Username and password bounds enforced at signup. The API layer reports
// these as validation errors; stores reject out-of-range values defensively.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 32
	MinPasswordLen = 3
	MaxPasswordLen = 72 // bcrypt input limit
)

// User is a registered player. The password hash never leaves the backend.
// HighScore and GamesPlayed only ever move forward for the lifetime of the
// account.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Score        int64      `json:"score"`
	HighScore    int64      `json:"highScore"`
	GamesPlayed  int64      `json:"gamesPlayed"`
	LastPlayed   *time.Time `json:"lastPlayed,omitempty"`
	CreatedAt    time.Time  `json:"-"`
	PasswordHash string     `json:"-"`
}

// SignupRequest is the payload for account creation.
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the signup payload against the account bounds.
func (r SignupRequest) Validate() error {
	if len(r.Username) < MinUsernameLen {
		return fmt.Errorf("%w: username must be at least %d characters", ErrInvalidRequest, MinUsernameLen)
	}
	if len(r.Username) > MaxUsernameLen {
		return fmt.Errorf("%w: username must be at most %d characters", ErrInvalidRequest, MaxUsernameLen)
	}
	if len(r.Password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidRequest, MinPasswordLen)
	}
	if len(r.Password) > MaxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d characters", ErrInvalidRequest, MaxPasswordLen)
	}
	return nil
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by signup and login.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
