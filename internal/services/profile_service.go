package services

import (
	"context"
	"errors"
	"fmt"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/storage"

	"github.com/badoux/checkmail"
)

var ErrEmailInUse = errors.New("email already in use")

// ProfileUpdate carries the fields to change; nil means unchanged.
type ProfileUpdate struct {
	Name     *string
	Email    *string
	Currency *string
	Avatar   *string
}

type ProfileService struct {
	users  UserStore
	logger *log.Logger
}

func NewProfileService(users UserStore, logger *log.Logger) *ProfileService {
	return &ProfileService{users: users, logger: logger.WithComponent(log.ComponentAuth)}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (core.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

func (s *ProfileService) Update(ctx context.Context, userID string, upd ProfileUpdate) (core.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, err
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Currency != nil {
		u.Currency = *upd.Currency
	}
	if upd.Avatar != nil {
		u.Avatar = *upd.Avatar
	}
	u.Normalize()
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if err := checkmail.ValidateFormat(u.Email); err != nil {
		return core.User{}, core.ErrInvalidEmail
	}

	// Never rewrite the hash from a profile edit.
	u.PasswordHash = ""
	updated, err := s.users.UpdateUser(ctx, u)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return core.User{}, ErrEmailInUse
		}
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	s.logger.InfoContext(ctx, "Profile updated", log.FieldUserID, userID)
	return updated, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *ProfileService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, current) {
		return auth.ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if _, err := s.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.logger.InfoContext(ctx, "Password changed", log.FieldUserID, userID)
	return nil
}
