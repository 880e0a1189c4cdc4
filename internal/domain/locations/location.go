package locations

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("location not found")

type Location struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city"`
	Province   string    `json:"province,omitempty"`
	PostalCode string    `json:"postalCode,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasCoordinates reports whether both latitude and longitude are set. The pair
// is all-or-nothing; a record with only one is rejected at create/update time.
func (l *Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

type CreateParams struct {
	Name       string
	Address    string
	City       string
	Province   string
	PostalCode string
	Latitude   *float64
	Longitude  *float64
}

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Location, error)
	List(ctx context.Context) ([]Location, error)
	Create(ctx context.Context, params CreateParams) (*Location, error)
	Update(ctx context.Context, id int64, params CreateParams) (*Location, error)
	// FindByNameAndCity is used by ingestion to reuse venues across runs.
	FindByNameAndCity(ctx context.Context, name, city string) (*Location, error)
}
