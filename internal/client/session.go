package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const (
	minPasswordLength = 8
	localTokenPrefix  = "local."
	localSessionTTL   = 30 * 24 * time.Hour
)

// hashCost is lowered in tests.
var hashCost = bcrypt.DefaultCost

// localUser is a user known to this device, either registered offline or
// mirrored from a successful online login.
type localUser struct {
	User core.User `json:"user"`
	Hash string    `json:"hash"`
}

// Session holds the logged-in account and keeps the API token in sync with it.
type Session struct {
	api    *API
	store  LocalStore
	fb     fallback
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *Account
}

func newSession(api *API, store LocalStore, fb fallback, logger *log.Logger) *Session {
	return &Session{api: api, store: store, fb: fb, logger: logger, now: time.Now}
}

func (s *Session) sessionDoc() doc[Account] {
	return doc[Account]{store: s.store, key: keySession}
}

func (s *Session) usersDoc() doc[map[string]localUser] {
	return doc[map[string]localUser]{store: s.store, key: keyUsers}
}

// Current returns the logged-in account, restoring it from the local store
// after a restart. Expired sessions are cleared.
func (s *Session) Current(ctx context.Context) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		acc, ok, err := s.sessionDoc().Load(ctx)
		if err != nil {
			return Account{}, err
		}
		if !ok {
			return Account{}, ErrNotLoggedIn
		}
		s.current = &acc
	}
	if !s.current.ExpiresAt.IsZero() && !s.now().Before(s.current.ExpiresAt) {
		s.current = nil
		s.api.SetToken("")
		if err := s.sessionDoc().Clear(ctx); err != nil {
			return Account{}, err
		}
		return Account{}, ErrNotLoggedIn
	}
	s.api.SetToken(s.current.Token)
	return *s.current, nil
}

func (s *Session) set(ctx context.Context, acc Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &acc
	s.api.SetToken(acc.Token)
	return s.sessionDoc().Save(ctx, acc)
}

// Login authenticates against the backend, or against the users known to
// this device when it is unreachable.
func (s *Session) Login(ctx context.Context, email, password string) (Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	acc, err := withFallback(ctx, s.fb, "login",
		func(ctx context.Context) (Account, error) {
			acc, err := s.api.Login(ctx, email, password)
			if IsStatus(err, 401) {
				return acc, ErrInvalidCredentials
			}
			return acc, err
		},
		func(ctx context.Context, acc Account) error {
			return s.rememberUser(ctx, acc.User, password)
		},
		func(ctx context.Context) (Account, error) {
			return s.localLogin(ctx, email, password)
		},
	)
	if err != nil {
		return Account{}, err
	}
	if err := s.set(ctx, acc); err != nil {
		return Account{}, err
	}
	s.logger.Info("Logged in", log.FieldUserID, acc.User.ID, "local", acc.Local)
	return acc, nil
}

// Register creates the account on the backend, or locally when it is
// unreachable. Local accounts stay local.
func (s *Session) Register(ctx context.Context, name, email, password, currency string) (Account, error) {
	u := core.User{Name: name, Email: email, Currency: currency}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return Account{}, err
	}
	if len(password) < minPasswordLength {
		return Account{}, ErrWeakPassword
	}

	acc, err := withFallback(ctx, s.fb, "register",
		func(ctx context.Context) (Account, error) {
			acc, err := s.api.Register(ctx, u.Name, u.Email, password, u.Currency)
			if IsStatus(err, 409) {
				return acc, ErrEmailTaken
			}
			return acc, err
		},
		func(ctx context.Context, acc Account) error {
			return s.rememberUser(ctx, acc.User, password)
		},
		func(ctx context.Context) (Account, error) {
			return s.localRegister(ctx, u, password)
		},
	)
	if err != nil {
		return Account{}, err
	}
	if err := s.set(ctx, acc); err != nil {
		return Account{}, err
	}
	s.logger.Info("Registered", log.FieldUserID, acc.User.ID, "local", acc.Local)
	return acc, nil
}

// Logout forgets the session. Shadow data stays on the device.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.api.SetToken("")
	return s.sessionDoc().Clear(ctx)
}

// updateUser refreshes the cached user after a profile change.
func (s *Session) updateUser(ctx context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.User.ID != u.ID {
		return nil
	}
	s.current.User = u
	if err := s.sessionDoc().Save(ctx, *s.current); err != nil {
		return err
	}

	users, _, err := s.usersDoc().Load(ctx)
	if err != nil || users == nil {
		return err
	}
	for email, lu := range users {
		if lu.User.ID == u.ID {
			delete(users, email)
			lu.User = u
			users[u.Email] = lu
			break
		}
	}
	return s.usersDoc().Save(ctx, users)
}

func (s *Session) rememberUser(ctx context.Context, u core.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return err
	}
	users, _, err := s.usersDoc().Load(ctx)
	if err != nil {
		return err
	}
	if users == nil {
		users = map[string]localUser{}
	}
	users[strings.ToLower(u.Email)] = localUser{User: u, Hash: string(hash)}
	return s.usersDoc().Save(ctx, users)
}

func (s *Session) localLogin(ctx context.Context, email, password string) (Account, error) {
	users, _, err := s.usersDoc().Load(ctx)
	if err != nil {
		return Account{}, err
	}
	lu, ok := users[email]
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(lu.Hash), []byte(password)) != nil {
		return Account{}, ErrInvalidCredentials
	}
	return s.localAccount(lu.User), nil
}

func (s *Session) localRegister(ctx context.Context, u core.User, password string) (Account, error) {
	users, _, err := s.usersDoc().Load(ctx)
	if err != nil {
		return Account{}, err
	}
	if _, exists := users[u.Email]; exists {
		return Account{}, ErrEmailTaken
	}
	u.ID = localID()
	u.CreatedAt = s.now().UTC()
	if err := s.rememberUser(ctx, u, password); err != nil {
		return Account{}, err
	}
	return s.localAccount(u), nil
}

func (s *Session) localAccount(u core.User) Account {
	return Account{
		Token:     localTokenPrefix + uuid.NewString(),
		ExpiresAt: s.now().Add(localSessionTTL).UTC(),
		User:      u,
		Local:     true,
	}
}
