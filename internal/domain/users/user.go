package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDisabled           = errors.New("user account is disabled")
)

// Role names carried in the user's role set and in issued tokens.
const (
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
	RoleAdmin     = "ADMIN"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	Roles        []string   `json:"roles"`
	City         string     `json:"city,omitempty"`
	Province     string     `json:"province,omitempty"`
	Enabled      bool       `json:"enabled"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

func (u *User) HasRole(role string) bool {
	for _, candidate := range u.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

type CreateParams struct {
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []string
	City         string
	Province     string
	Enabled      bool
}

type UpdateParams struct {
	Email     string
	FirstName string
	LastName  string
	City      string
	Province  string
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, params CreateParams) (*User, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*User, error)
	// SetRoles and SetEnabled are admin-only mutations.
	SetRoles(ctx context.Context, id int64, roles []string) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	// Delete removes the account; events created by the user survive with a
	// cleared creator reference.
	Delete(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	RecordLogin(ctx context.Context, id int64, at time.Time) error
}
