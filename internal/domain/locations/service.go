package locations

import (
	"context"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Location, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Location, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Location, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, params)
}

func (s *Service) Update(ctx context.Context, id int64, params CreateParams) (*Location, error) {
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, params)
}

func ValidateParams(params CreateParams) error {
	if strings.TrimSpace(params.Name) == "" {
		return ValidationError{Field: "name", Message: "must not be blank"}
	}
	if strings.TrimSpace(params.City) == "" {
		return ValidationError{Field: "city", Message: "must not be blank"}
	}
	if (params.Latitude == nil) != (params.Longitude == nil) {
		return ValidationError{Field: "coordinates", Message: "latitude and longitude must be set together"}
	}
	if params.Latitude != nil {
		if *params.Latitude < -90 || *params.Latitude > 90 {
			return ValidationError{Field: "latitude", Message: "must be between -90 and 90"}
		}
		if *params.Longitude < -180 || *params.Longitude > 180 {
			return ValidationError{Field: "longitude", Message: "must be between -180 and 180"}
		}
	}
	return nil
}
