package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/anastasiosv/snake-rivals-arena/internal/domain"
)

// UserStore defines the persistence the credential service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// Service owns account creation and password verification.
type Service struct {
	users  UserStore
	cost   int
	logger *slog.Logger
}

// NewService creates a new credential service
func NewService(users UserStore, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:  users,
		cost:   bcryptCost,
		logger: logger,
	}
}

// Signup registers a new user. The password is stored only as a bcrypt
// digest. A duplicate username fails with domain.ErrUsernameTaken.
func (s *Service) Signup(ctx context.Context, username, password string) (*domain.User, error) {
	req := domain.SignupRequest{Username: username, Password: password}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login verifies credentials. An unknown username and a wrong password both
// fail with the same domain.ErrInvalidCredentials so responses cannot be
// used to enumerate accounts.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// ResolveUser maps a bearer token to the user it names. A malformed token
// and a token naming a missing user both fail with domain.ErrInvalidToken.
func (s *Service) ResolveUser(ctx context.Context, token string) (*domain.User, error) {
	userID, err := ResolveToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}
