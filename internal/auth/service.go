// Package auth handles registration, login and bearer token verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"

	"github.com/badoux/checkmail"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
)

// UserStore is the subset of storage the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
}

// Session is returned by Register and Login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}

type Service struct {
	users  UserStore
	tokens *TokenManager
	logger *log.Logger
}

func NewService(users UserStore, tokens *TokenManager, logger *log.Logger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger.WithComponent(log.ComponentAuth)}
}

// Register creates the user and logs them in.
func (s *Service) Register(ctx context.Context, name, email, password, currency string) (Session, error) {
	u := core.User{Name: name, Email: email, Currency: currency}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return Session{}, err
	}
	if err := checkmail.ValidateFormat(u.Email); err != nil {
		return Session{}, core.ErrInvalidEmail
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}
	u.PasswordHash = hash

	created, err := s.users.CreateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, fmt.Errorf("register: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, created.ID)
	return s.issue(created)
}

// Login checks the password and issues a token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Failed login attempt", log.FieldUserID, u.ID)
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Me returns the user behind a verified token.
func (s *Service) Me(ctx context.Context, userID string) (core.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.User{}, ErrUserNotFound
		}
		return core.User{}, fmt.Errorf("me: %w", err)
	}
	return u, nil
}

// Tokens exposes the token manager for the HTTP middleware.
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

func (s *Service) issue(u core.User) (Session, error) {
	token, exp, err := s.tokens.Issue(u.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}
