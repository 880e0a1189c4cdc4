package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cultureradar/server/internal/api/middleware"
	"github.com/cultureradar/server/internal/api/problem"
	"github.com/cultureradar/server/internal/auth"
	"github.com/cultureradar/server/internal/domain/users"
)

type UsersHandler struct {
	Users  *users.Service
	Policy auth.Policy
	Env    string
}

func NewUsersHandler(service *users.Service, policy auth.Policy, env string) *UsersHandler {
	return &UsersHandler{Users: service, Policy: policy, Env: env}
}

// Profile returns the caller's own account.
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	user, err := h.Users.GetByID(r.Context(), claimUserID(claims))
	if err != nil {
		writeUserError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type profilePayload struct {
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	City      string `json:"city"`
	Province  string `json:"province"`
}

// UpdateProfile updates the caller's own account fields.
func (h *UsersHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var payload profilePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env,
			problem.WithErrors(validationErrors(err)))
		return
	}

	user, err := h.Users.UpdateProfile(r.Context(), claimUserID(claims), users.UpdateParams{
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		City:      payload.City,
		Province:  payload.Province,
	})
	if err != nil {
		writeUserError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type passwordPayload struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// ChangePassword verifies the current password before replacing it.
func (h *UsersHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var payload passwordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env,
			problem.WithErrors(validationErrors(err)))
		return
	}

	if err := h.Users.ChangePassword(r.Context(), claimUserID(claims), payload.CurrentPassword, payload.NewPassword); err != nil {
		writeUserError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// AdminList returns every account. ADMIN only.
func (h *UsersHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpAdminUsers, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	list, err := h.Users.List(r.Context())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// AdminGet returns one account by id. ADMIN only.
func (h *UsersHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpAdminUsers, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	user, err := h.Users.GetByID(r.Context(), id)
	if err != nil {
		writeUserError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type adminUserPayload struct {
	Email     string   `json:"email" validate:"omitempty,email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	City      string   `json:"city"`
	Province  string   `json:"province"`
	Roles     []string `json:"roles"`
	Enabled   *bool    `json:"enabled"`
}

// AdminUpdate edits another account, including its roles and enabled flag.
// ADMIN only.
func (h *UsersHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpAdminUsers, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	var payload adminUserPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env,
			problem.WithErrors(validationErrors(err)))
		return
	}

	user, err := h.Users.UpdateProfile(r.Context(), id, users.UpdateParams{
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		City:      payload.City,
		Province:  payload.Province,
	})
	if err != nil {
		writeUserError(w, r, err, h.Env)
		return
	}

	if len(payload.Roles) > 0 {
		if err := h.Users.SetRoles(r.Context(), id, payload.Roles); err != nil {
			writeUserError(w, r, err, h.Env)
			return
		}
		user.Roles = payload.Roles
	}
	if payload.Enabled != nil {
		if err := h.Users.SetEnabled(r.Context(), id, *payload.Enabled); err != nil {
			writeUserError(w, r, err, h.Env)
			return
		}
		user.Enabled = *payload.Enabled
	}

	writeJSON(w, http.StatusOK, user)
}

// AdminDelete removes an account. Events it created survive with a cleared
// creator reference. ADMIN only.
func (h *UsersHandler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if !h.Policy.Allowed(auth.OpAdminUsers, claimRoles(claims), 0, claimUserID(claims)) {
		problem.Write(w, r, http.StatusForbidden, problemForbidden, "Forbidden", problem.ErrForbidden, h.Env)
		return
	}

	id, err := pathID(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}

	if err := h.Users.Delete(r.Context(), id); err != nil {
		writeUserError(w, r, err, h.Env)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
