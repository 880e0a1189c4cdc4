package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/cultureradar/server/internal/api/middleware"
	"github.com/cultureradar/server/internal/api/problem"
	"github.com/cultureradar/server/internal/auth"
	"github.com/cultureradar/server/internal/domain/users"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type AuthHandler struct {
	Users *users.Service
	JWT   *auth.JWTManager
	Env   string
}

func NewAuthHandler(service *users.Service, jwt *auth.JWTManager, env string) *AuthHandler {
	return &AuthHandler{Users: service, JWT: jwt, Env: env}
}

type loginPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

// Login authenticates credentials and issues a signed token carrying the
// user's id, username and roles.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env,
			problem.WithErrors(validationErrors(err)))
		return
	}

	user, err := h.Users.Authenticate(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrDisabled) {
			problem.Write(w, r, http.StatusUnauthorized, "https://cultureradar.ca/problems/unauthorized", "Unauthorized", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}

	token, err := h.JWT.Generate(user.ID, user.Username, user.Roles)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

type registerPayload struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	City      string `json:"city"`
	Province  string `json:"province"`
}

// Register creates an enabled account with the default USER role. Duplicate
// username or email is a 400, matching the historical contract.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(payload); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env,
			problem.WithErrors(validationErrors(err)))
		return
	}

	user, err := h.Users.Register(r.Context(), users.RegisterParams{
		Username:  payload.Username,
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		City:      payload.City,
		Province:  payload.Province,
	})
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) || errors.Is(err, users.ErrEmailTaken) {
			problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, h.Env)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

type validateTokenPayload struct {
	Token string `json:"token"`
}

// ValidateToken reports whether the supplied token is currently valid. The
// token comes from the body, falling back to the Authorization header.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var payload validateTokenPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)

	token := payload.Token
	if token == "" {
		if fromHeader, err := auth.TokenFromHeader(r.Header.Get("Authorization")); err == nil {
			token = fromHeader
		}
	}

	_, err := h.JWT.Validate(token)
	writeJSON(w, http.StatusOK, map[string]bool{"valid": err == nil})
}

// Logout is a stateless acknowledgment; tokens expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// CurrentUser returns the profile of the token bearer.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, "https://cultureradar.ca/problems/unauthorized", "Unauthorized", auth.ErrMissingToken, h.Env)
		return
	}

	user, err := h.Users.GetByID(r.Context(), claims.UserID())
	if err != nil {
		writeUserError(w, r, err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func validationErrors(err error) map[string]interface{} {
	out := map[string]interface{}{}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			out[fe.Field()] = fe.Tag()
		}
	}
	return out
}

func writeUserError(w http.ResponseWriter, r *http.Request, err error, env string) {
	switch {
	case errors.Is(err, users.ErrNotFound):
		problem.Write(w, r, http.StatusNotFound, problemNotFound, "Not found", err, env)
	case errors.Is(err, users.ErrUsernameTaken), errors.Is(err, users.ErrEmailTaken):
		problem.Write(w, r, http.StatusBadRequest, problemValidation, "Invalid request", err, env)
	case errors.Is(err, users.ErrInvalidCredentials):
		problem.Write(w, r, http.StatusUnauthorized, "https://cultureradar.ca/problems/unauthorized", "Unauthorized", err, env)
	default:
		problem.Write(w, r, http.StatusInternalServerError, problemServerError, "Server error", err, env)
	}
}
