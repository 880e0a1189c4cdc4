package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cultureradar/server/internal/api/problem"
	"github.com/cultureradar/server/internal/domain/locations"
)

type LocationsHandler struct {
	Locations *locations.Service
	Env       string
}

func NewLocationsHandler(svc *locations.Service, env string) *LocationsHandler {
	return &LocationsHandler{Locations: svc, Env: env}
}

// List serves the full venue catalog, ordered by name.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.Locations.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Get serves one venue by id.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	loc, err := h.Locations.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// Create stores a new venue. Admin only; the router enforces the role.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	params, err := decodeLocationBody(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	loc, err := h.Locations.Create(r.Context(), params)
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

// Update replaces the fields of an existing venue.
func (h *LocationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	params, err := decodeLocationBody(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	loc, err := h.Locations.Update(r.Context(), id, params)
	if err != nil {
		writeDomainError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func decodeLocationBody(r *http.Request) (locations.CreateParams, error) {
	var payload locationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return locations.CreateParams{}, err
	}
	return locations.CreateParams{
		Name:       payload.Name,
		Address:    payload.Address,
		City:       payload.City,
		Province:   payload.Province,
		PostalCode: payload.PostalCode,
		Latitude:   payload.Latitude,
		Longitude:  payload.Longitude,
	}, nil
}
