package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cultureradar/server/internal/domain/locations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ locations.Repository = (*LocationRepository)(nil)

const locationColumns = `
id, name, address, city, province, postal_code, latitude, longitude,
created_at, updated_at`

func (r *LocationRepository) GetByID(ctx context.Context, id int64) (*locations.Location, error) {
	row := r.querier().QueryRow(ctx, `
SELECT `+locationColumns+` FROM locations WHERE id = $1`, id)
	return scanLocation(row)
}

func (r *LocationRepository) List(ctx context.Context) ([]locations.Location, error) {
	rows, err := r.querier().Query(ctx, `
SELECT `+locationColumns+` FROM locations ORDER BY city ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var items []locations.Location
	for rows.Next() {
		location, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		items = append(items, *location)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return items, nil
}

func (r *LocationRepository) Create(ctx context.Context, params locations.CreateParams) (*locations.Location, error) {
	row := r.querier().QueryRow(ctx, `
INSERT INTO locations (name, address, city, province, postal_code, latitude, longitude)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+locationColumns,
		params.Name, params.Address, params.City, params.Province,
		params.PostalCode, params.Latitude, params.Longitude,
	)
	location, err := scanLocation(row)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	return location, nil
}

func (r *LocationRepository) Update(ctx context.Context, id int64, params locations.CreateParams) (*locations.Location, error) {
	row := r.querier().QueryRow(ctx, `
UPDATE locations
   SET name = $2, address = $3, city = $4, province = $5, postal_code = $6,
       latitude = $7, longitude = $8, updated_at = now()
 WHERE id = $1
RETURNING `+locationColumns,
		id, params.Name, params.Address, params.City, params.Province,
		params.PostalCode, params.Latitude, params.Longitude,
	)
	location, err := scanLocation(row)
	if err != nil {
		if errors.Is(err, locations.ErrNotFound) {
			return nil, locations.ErrNotFound
		}
		return nil, fmt.Errorf("update location: %w", err)
	}
	return location, nil
}

func (r *LocationRepository) FindByNameAndCity(ctx context.Context, name, city string) (*locations.Location, error) {
	row := r.querier().QueryRow(ctx, `
SELECT `+locationColumns+`
  FROM locations
 WHERE lower(name) = lower($1) AND lower(city) = lower($2)
 LIMIT 1`, name, city)
	return scanLocation(row)
}

func (r *LocationRepository) querier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanLocation(row pgx.Row) (*locations.Location, error) {
	var (
		loc        locations.Location
		address    *string
		province   *string
		postalCode *string
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&loc.ID,
		&loc.Name,
		&address,
		&loc.City,
		&province,
		&postalCode,
		&loc.Latitude,
		&loc.Longitude,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, locations.ErrNotFound
		}
		return nil, err
	}
	loc.Address = derefString(address)
	loc.Province = derefString(province)
	loc.PostalCode = derefString(postalCode)
	loc.CreatedAt = timeValue(createdAt)
	loc.UpdatedAt = timeValue(updatedAt)
	return &loc, nil
}
