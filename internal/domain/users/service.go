package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for password hashing.
const BcryptCost = 12

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

type RegisterParams struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	City      string
	Province  string
}

// Register creates an enabled account with the default USER role. Duplicate
// username or email is rejected before any write.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	if _, err := s.repo.GetByUsername(ctx, params.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if _, err := s.repo.GetByEmail(ctx, params.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, CreateParams{
		Username:     strings.TrimSpace(params.Username),
		Email:        strings.TrimSpace(params.Email),
		PasswordHash: string(hash),
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Roles:        []string{RoleUser},
		City:         params.City,
		Province:     params.Province,
		Enabled:      true,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Authenticate verifies the credentials, rejects disabled accounts, and
// records the login time. The caller issues the token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Enabled {
		return nil, ErrDisabled
	}

	if err := s.repo.RecordLogin(ctx, user.ID, time.Now()); err != nil {
		// Login bookkeeping must not block authentication.
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("record login failed")
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// UpdateProfile changes the caller's own mutable fields. A new email must not
// collide with another account.
func (s *Service) UpdateProfile(ctx context.Context, id int64, params UpdateParams) (*User, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Email != "" && params.Email != existing.Email {
		if other, err := s.repo.GetByEmail(ctx, params.Email); err == nil && other.ID != id {
			return nil, ErrEmailTaken
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check email: %w", err)
		}
	}
	return s.repo.Update(ctx, id, params)
}

// ChangePassword swaps the credential after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, string(hash))
}

func (s *Service) SetRoles(ctx context.Context, id int64, roles []string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SetRoles(ctx, id, roles)
}

func (s *Service) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SetEnabled(ctx, id, enabled)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
