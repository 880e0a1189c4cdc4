package middleware

import (
	"context"
	"net/http"

	"github.com/cultureradar/server/internal/api/problem"
	"github.com/cultureradar/server/internal/auth"
)

const claimsKey contextKey = "jwt_claims"

// Authenticate validates the Bearer token and stores its claims in the
// request context. Requests without a valid token are rejected with 401.
func Authenticate(manager *auth.JWTManager, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, env)
				return
			}

			claims, err := manager.Validate(token)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", err, env)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate stores claims in the context when a valid token is
// present but lets anonymous requests through. Used on public endpoints that
// behave differently for signed-in users.
func OptionalAuthenticate(manager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err == nil {
				if claims, err := manager.Validate(token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), claimsKey, claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects authenticated requests whose claims lack the role.
// Must run after Authenticate.
func RequireRole(role string, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				problem.Write(w, r, http.StatusUnauthorized, "about:blank", "Unauthorized", auth.ErrMissingToken, env)
				return
			}
			if !claims.HasRole(role) {
				problem.Write(w, r, http.StatusForbidden, "about:blank", "Forbidden", problem.ErrForbidden, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the authenticated claims, or nil for anonymous
// requests.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}
