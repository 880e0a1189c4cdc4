package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cultureradar/server/internal/domain/users"
)

type memoryUsersRepo struct {
	nextID int64
	byID   map[int64]*users.User
}

func newMemoryUsersRepo() *memoryUsersRepo {
	return &memoryUsersRepo{byID: map[int64]*users.User{}}
}

func (m *memoryUsersRepo) GetByID(_ context.Context, id int64) (*users.User, error) {
	if user, ok := m.byID[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, users.ErrNotFound
}

func (m *memoryUsersRepo) GetByUsername(_ context.Context, username string) (*users.User, error) {
	for _, user := range m.byID {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, users.ErrNotFound
}

func (m *memoryUsersRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	for _, user := range m.byID {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, users.ErrNotFound
}

func (m *memoryUsersRepo) List(_ context.Context) ([]users.User, error) {
	out := make([]users.User, 0, len(m.byID))
	for _, user := range m.byID {
		out = append(out, *user)
	}
	return out, nil
}

func (m *memoryUsersRepo) Create(_ context.Context, params users.CreateParams) (*users.User, error) {
	m.nextID++
	user := &users.User{
		ID:           m.nextID,
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Roles:        params.Roles,
		City:         params.City,
		Province:     params.Province,
		Enabled:      params.Enabled,
		CreatedAt:    time.Now(),
	}
	m.byID[user.ID] = user
	copied := *user
	return &copied, nil
}

func (m *memoryUsersRepo) Update(_ context.Context, id int64, params users.UpdateParams) (*users.User, error) {
	user, ok := m.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	if params.Email != "" {
		user.Email = params.Email
	}
	user.FirstName = params.FirstName
	user.LastName = params.LastName
	user.City = params.City
	user.Province = params.Province
	copied := *user
	return &copied, nil
}

func (m *memoryUsersRepo) SetRoles(_ context.Context, id int64, roles []string) error {
	user, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	user.Roles = roles
	return nil
}

func (m *memoryUsersRepo) SetEnabled(_ context.Context, id int64, enabled bool) error {
	user, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	user.Enabled = enabled
	return nil
}

func (m *memoryUsersRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return users.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryUsersRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	user, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (m *memoryUsersRepo) RecordLogin(_ context.Context, id int64, at time.Time) error {
	user, ok := m.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	user.LastLoginAt = &at
	return nil
}

func newAuthHandler(t *testing.T) (*AuthHandler, *users.Service) {
	t.Helper()
	svc := users.NewService(newMemoryUsersRepo(), zerolog.Nop())
	return NewAuthHandler(svc, testJWT, "test"), svc
}

func registerAccount(t *testing.T, svc *users.Service, username, password string) *users.User {
	t.Helper()
	user, err := svc.Register(context.Background(), users.RegisterParams{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return user
}

func TestLogin(t *testing.T) {
	handler, svc := newAuthHandler(t)
	registerAccount(t, svc, "alice", "correct-horse-battery")

	body := `{"username": "alice", "password": "correct-horse-battery"}`
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, "alice", resp.User.Username)

	claims, err := testJWT.Validate(resp.Token)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.UserID())
	require.Equal(t, resp.User.Roles, claims.Roles)
}

func TestLoginWrongPassword(t *testing.T) {
	handler, svc := newAuthHandler(t)
	registerAccount(t, svc, "alice", "correct-horse-battery")

	body := `{"username": "alice", "password": "nope"}`
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Login(rec, r)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestLoginMissingFields(t *testing.T) {
	handler, _ := newAuthHandler(t)

	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username": "alice"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, r)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problemBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problemBody))
	require.Contains(t, problemBody["errors"], "Password")
}

func TestRegisterHandler(t *testing.T) {
	handler, _ := newAuthHandler(t)

	body := `{"username": "bob", "email": "bob@example.com", "password": "hunter2hunter2", "city": "Ottawa"}`
	r := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, r)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, "bob", created.Username)
	require.Equal(t, []string{"USER"}, created.Roles)
	require.True(t, created.Enabled)

	// Same username again is a 400.
	r = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler.Register(rec, r)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	handler, _ := newAuthHandler(t)

	body := `{"username": "bob", "email": "bob@example.com", "password": "short"}`
	r := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Register(rec, r)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problemBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problemBody))
	require.Contains(t, problemBody["errors"], "Password")
}

func TestValidateToken(t *testing.T) {
	handler, _ := newAuthHandler(t)
	token, err := testJWT.Generate(7, "alice", []string{"USER"})
	require.NoError(t, err)

	// Token in the body.
	r := httptest.NewRequest(http.MethodPost, "/api/auth/validate-token", strings.NewReader(`{"token": "`+token+`"}`))
	rec := httptest.NewRecorder()
	handler.ValidateToken(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"valid": true}`, rec.Body.String())

	// Token in the Authorization header.
	r = httptest.NewRequest(http.MethodPost, "/api/auth/validate-token", strings.NewReader(`{}`))
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ValidateToken(rec, r)
	require.JSONEq(t, `{"valid": true}`, rec.Body.String())

	// Garbage token.
	r = httptest.NewRequest(http.MethodPost, "/api/auth/validate-token", strings.NewReader(`{"token": "garbage"}`))
	rec = httptest.NewRecorder()
	handler.ValidateToken(rec, r)
	require.JSONEq(t, `{"valid": false}`, rec.Body.String())
}

func TestCurrentUser(t *testing.T) {
	handler, svc := newAuthHandler(t)
	account := registerAccount(t, svc, "carol", "a-long-password")

	r := httptest.NewRequest(http.MethodGet, "/api/auth/current-user", nil)
	rec := authedRequest(t, handler.CurrentUser, r, account.ID, account.Roles)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched users.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	require.Equal(t, account.Username, fetched.Username)

	// No token at all.
	r = httptest.NewRequest(http.MethodGet, "/api/auth/current-user", nil)
	rec = authedRequest(t, handler.CurrentUser, r, 0, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
