package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cultureradar/server/internal/auth"
	"github.com/cultureradar/server/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCorrelationIDGeneratesID(t *testing.T) {
	var seen string
	handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestCorrelationIDHonorsIncomingHeader(t *testing.T) {
	var seen string
	handler := CorrelationID(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "proxy-assigned-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, "proxy-assigned-id", seen)
	require.Equal(t, "proxy-assigned-id", rec.Header().Get("X-Request-ID"))
}

func TestCORSWhitelist(t *testing.T) {
	cfg := config.CORSConfig{AllowedOrigins: []string{"https://cultureradar.ca"}}
	handler := CORS(cfg, zerolog.Nop())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/api/events/public/search", nil)
	r.Header.Set("Origin", "https://CultureRadar.ca")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, "https://CultureRadar.ca", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/api/events/public/search", nil)
	r.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	// The request itself still goes through; the browser enforces the denial.
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSAllowAllEchoesOrigin(t *testing.T) {
	cfg := config.CORSConfig{AllowAllOrigins: true}
	handler := CORS(cfg, zerolog.Nop())(okHandler())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSPreflight(t *testing.T) {
	cfg := config.CORSConfig{AllowAllOrigins: true}
	called := false
	handler := CORS(cfg, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, called)
	require.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRateLimitEnforcesPublicTier(t *testing.T) {
	cfg := config.RateLimitConfig{PublicPerMinute: 2, AuthedPerMinute: 100}
	handler := RateLimit(cfg)(okHandler())

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/events/public/search", nil)
		r.RemoteAddr = "203.0.113.9:4411"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/events/public/search", nil)
	r.RemoteAddr = "203.0.113.9:4411"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different client has its own bucket.
	r = httptest.NewRequest(http.MethodGet, "/api/events/public/search", nil)
	r.RemoteAddr = "198.51.100.7:4411"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitExemptsHealthEndpoints(t *testing.T) {
	cfg := config.RateLimitConfig{PublicPerMinute: 1, AuthedPerMinute: 1}
	handler := RateLimit(cfg)(okHandler())

	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		r.RemoteAddr = "203.0.113.9:4411"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimitDisabledWhenZero(t *testing.T) {
	handler := RateLimit(config.RateLimitConfig{})(okHandler())

	for i := 0; i < 10; i++ {
		r := httptest.NewRequest(http.MethodGet, "/api/events/public/search", nil)
		r.RemoteAddr = "203.0.113.9:4411"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestAuthenticateRejectsMissingOrBadToken(t *testing.T) {
	manager := auth.NewJWTManager("middleware-test-secret", time.Hour, "test")
	handler := Authenticate(manager, "test")(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatePropagatesClaims(t *testing.T) {
	manager := auth.NewJWTManager("middleware-test-secret", time.Hour, "test")
	token, err := manager.Generate(42, "alice", []string{"USER"})
	require.NoError(t, err)

	var claims *auth.Claims
	handler := Authenticate(manager, "test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = ClaimsFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	require.Equal(t, int64(42), claims.UserID())
	require.Equal(t, "alice", claims.Username)
}

func TestOptionalAuthenticateLetsAnonymousThrough(t *testing.T) {
	manager := auth.NewJWTManager("middleware-test-secret", time.Hour, "test")

	var claims *auth.Claims
	handler := OptionalAuthenticate(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, claims)
}

func TestRequireRole(t *testing.T) {
	manager := auth.NewJWTManager("middleware-test-secret", time.Hour, "test")
	token, err := manager.Generate(7, "bob", []string{"USER"})
	require.NoError(t, err)

	chain := func(role string) http.Handler {
		return Authenticate(manager, "test")(RequireRole(role, "test")(okHandler()))
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	chain(auth.RoleUser).ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	chain(auth.RoleAdmin).ServeHTTP(rec, r)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
