package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cultureradar/server/internal/domain/locations"
)

type stubLocationsRepo struct {
	getFn    func(id int64) (*locations.Location, error)
	listFn   func() ([]locations.Location, error)
	createFn func(params locations.CreateParams) (*locations.Location, error)
	updateFn func(id int64, params locations.CreateParams) (*locations.Location, error)
}

func (s stubLocationsRepo) GetByID(_ context.Context, id int64) (*locations.Location, error) {
	if s.getFn == nil {
		return nil, locations.ErrNotFound
	}
	return s.getFn(id)
}

func (s stubLocationsRepo) List(context.Context) ([]locations.Location, error) {
	if s.listFn == nil {
		return []locations.Location{}, nil
	}
	return s.listFn()
}

func (s stubLocationsRepo) Create(_ context.Context, params locations.CreateParams) (*locations.Location, error) {
	return s.createFn(params)
}

func (s stubLocationsRepo) Update(_ context.Context, id int64, params locations.CreateParams) (*locations.Location, error) {
	return s.updateFn(id, params)
}

func (s stubLocationsRepo) FindByNameAndCity(context.Context, string, string) (*locations.Location, error) {
	return nil, locations.ErrNotFound
}

func newLocationsHandler(repo locations.Repository) *LocationsHandler {
	return NewLocationsHandler(locations.NewService(repo), "test")
}

func TestLocationsList(t *testing.T) {
	handler := newLocationsHandler(stubLocationsRepo{listFn: func() ([]locations.Location, error) {
		return []locations.Location{{ID: 1, Name: "Massey Hall", City: "Toronto"}}, nil
	}})

	r := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)

	var got []locations.Location
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Massey Hall", got[0].Name)
}

func TestLocationsGetNotFound(t *testing.T) {
	handler := newLocationsHandler(stubLocationsRepo{})

	r := httptest.NewRequest(http.MethodGet, "/api/locations/99", nil)
	r.SetPathValue("id", "99")
	rec := httptest.NewRecorder()
	handler.Get(rec, r)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLocationsCreate(t *testing.T) {
	var stored locations.CreateParams
	handler := newLocationsHandler(stubLocationsRepo{createFn: func(params locations.CreateParams) (*locations.Location, error) {
		stored = params
		return &locations.Location{ID: 5, Name: params.Name, City: params.City}, nil
	}})

	body := `{"name":"Massey Hall","city":"Toronto","latitude":43.654,"longitude":-79.379}`
	r := httptest.NewRequest(http.MethodPost, "/api/locations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "Massey Hall", stored.Name)
	require.NotNil(t, stored.Latitude)
}

func TestLocationsCreateRejectsInvalidVenue(t *testing.T) {
	handler := newLocationsHandler(stubLocationsRepo{createFn: func(locations.CreateParams) (*locations.Location, error) {
		t.Fatal("invalid venue must not reach the repository")
		return nil, nil
	}})

	// Latitude without longitude fails coordinate validation.
	body := `{"name":"Massey Hall","city":"Toronto","latitude":43.654}`
	r := httptest.NewRequest(http.MethodPost, "/api/locations", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, r)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "coordinates")
}

func TestLocationsUpdate(t *testing.T) {
	handler := newLocationsHandler(stubLocationsRepo{updateFn: func(id int64, params locations.CreateParams) (*locations.Location, error) {
		require.Equal(t, int64(5), id)
		return &locations.Location{ID: id, Name: params.Name, City: params.City}, nil
	}})

	body := `{"name":"Roy Thomson Hall","city":"Toronto"}`
	r := httptest.NewRequest(http.MethodPut, "/api/locations/5", strings.NewReader(body))
	r.SetPathValue("id", "5")
	rec := httptest.NewRecorder()
	handler.Update(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)

	var got locations.Location
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Roy Thomson Hall", got.Name)
}
