package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cultureradar/server/internal/domain/users"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ users.Repository = (*UserRepository)(nil)

const userColumns = `
id, username, email, password_hash, first_name, last_name, roles, city,
province, enabled, created_at, last_login_at`

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*users.User, error) {
	row := r.querier().QueryRow(ctx, `
SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	row := r.querier().QueryRow(ctx, `
SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	row := r.querier().QueryRow(ctx, `
SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context) ([]users.User, error) {
	rows, err := r.querier().Query(ctx, `
SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var items []users.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	row := r.querier().QueryRow(ctx, `
INSERT INTO users (username, email, password_hash, first_name, last_name,
                   roles, city, province, enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+userColumns,
		params.Username, params.Email, params.PasswordHash, params.FirstName,
		params.LastName, params.Roles, params.City, params.Province, params.Enabled,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, id int64, params users.UpdateParams) (*users.User, error) {
	row := r.querier().QueryRow(ctx, `
UPDATE users
   SET email = COALESCE(NULLIF($2, ''), email),
       first_name = $3, last_name = $4, city = $5, province = $6
 WHERE id = $1
RETURNING `+userColumns,
		id, params.Email, params.FirstName, params.LastName, params.City, params.Province,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) SetRoles(ctx context.Context, id int64, roles []string) error {
	tag, err := r.querier().Exec(ctx, `UPDATE users SET roles = $2 WHERE id = $1`, id, roles)
	if err != nil {
		return fmt.Errorf("set roles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := r.querier().Exec(ctx, `UPDATE users SET enabled = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	// events.creator_id is ON DELETE SET NULL, so created events survive.
	tag, err := r.querier().Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.querier().Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.querier().Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (r *UserRepository) querier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanUser(row pgx.Row) (*users.User, error) {
	var (
		user        users.User
		firstName   *string
		lastName    *string
		city        *string
		province    *string
		createdAt   pgtype.Timestamptz
		lastLoginAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&firstName,
		&lastName,
		&user.Roles,
		&city,
		&province,
		&user.Enabled,
		&createdAt,
		&lastLoginAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, err
	}
	user.FirstName = derefString(firstName)
	user.LastName = derefString(lastName)
	user.City = derefString(city)
	user.Province = derefString(province)
	user.CreatedAt = timeValue(createdAt)
	user.LastLoginAt = timePtr(lastLoginAt)
	return &user, nil
}
