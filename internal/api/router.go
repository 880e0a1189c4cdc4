// Package api wires the HTTP surface: routing, middleware and handlers.
package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cultureradar/server/internal/api/handlers"
	"github.com/cultureradar/server/internal/api/middleware"
	"github.com/cultureradar/server/internal/auth"
	"github.com/cultureradar/server/internal/config"
	"github.com/cultureradar/server/internal/metrics"
)

// Deps carries the constructed services the router exposes.
type Deps struct {
	Events    *handlers.EventsHandler
	Locations *handlers.LocationsHandler
	Auth      *handlers.AuthHandler
	Users     *handlers.UsersHandler
	Health    *handlers.HealthChecker
	JWT       *auth.JWTManager
}

func NewRouter(cfg config.Config, deps Deps, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", deps.Health.Healthz())
	mux.Handle("/readyz", deps.Health.Readyz())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	authed := middleware.Authenticate(deps.JWT, cfg.Environment)

	// Public catalog
	mux.Handle("/api/events/public/search", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Events.PublicSearch),
	}))
	mux.Handle("/api/events/public/upcoming", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Events.PublicUpcoming),
	}))
	mux.Handle("/api/events/public/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Events.PublicGet),
	}))

	// Submissions and curation
	mux.Handle("/api/events", methodMux(map[string]http.Handler{
		http.MethodPost: authed(http.HandlerFunc(deps.Events.Create)),
	}))
	mux.Handle("/api/events/{id}", methodMux(map[string]http.Handler{
		http.MethodPut:    authed(http.HandlerFunc(deps.Events.Update)),
		http.MethodDelete: authed(http.HandlerFunc(deps.Events.Delete)),
	}))
	mux.Handle("/api/events/admin/pending-approval", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(deps.Events.Pending)),
	}))
	mux.Handle("/api/events/admin/approve", methodMux(map[string]http.Handler{
		http.MethodPut: authed(http.HandlerFunc(deps.Events.Approve)),
	}))
	mux.Handle("/api/events/admin/fetch-external", methodMux(map[string]http.Handler{
		http.MethodPost: authed(http.HandlerFunc(deps.Events.FetchExternal)),
	}))

	// Venues: reads are public, writes are admin only
	adminOnly := middleware.RequireRole(auth.RoleAdmin, cfg.Environment)
	mux.Handle("/api/locations", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(deps.Locations.List),
		http.MethodPost: authed(adminOnly(http.HandlerFunc(deps.Locations.Create))),
	}))
	mux.Handle("/api/locations/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(deps.Locations.Get),
		http.MethodPut: authed(adminOnly(http.HandlerFunc(deps.Locations.Update))),
	}))

	// Identity
	mux.Handle("/api/auth/login", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(deps.Auth.Login),
	}))
	mux.Handle("/api/auth/register", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(deps.Auth.Register),
	}))
	mux.Handle("/api/auth/validate-token", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(deps.Auth.ValidateToken),
	}))
	mux.Handle("/api/auth/logout", methodMux(map[string]http.Handler{
		http.MethodPost: http.HandlerFunc(deps.Auth.Logout),
	}))
	mux.Handle("/api/auth/current-user", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(deps.Auth.CurrentUser)),
	}))

	// Profiles
	mux.Handle("/api/users/profile", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(deps.Users.Profile)),
		http.MethodPut: authed(http.HandlerFunc(deps.Users.UpdateProfile)),
	}))
	mux.Handle("/api/users/profile/password", methodMux(map[string]http.Handler{
		http.MethodPut: authed(http.HandlerFunc(deps.Users.ChangePassword)),
	}))
	mux.Handle("/api/users/admin", methodMux(map[string]http.Handler{
		http.MethodGet: authed(http.HandlerFunc(deps.Users.AdminList)),
	}))
	mux.Handle("/api/users/admin/{id}", methodMux(map[string]http.Handler{
		http.MethodGet:    authed(http.HandlerFunc(deps.Users.AdminGet)),
		http.MethodPut:    authed(http.HandlerFunc(deps.Users.AdminUpdate)),
		http.MethodDelete: authed(http.HandlerFunc(deps.Users.AdminDelete)),
	}))

	// Outermost first: correlation id feeds the request logger, rate limiting
	// sees the optional claims.
	var handler http.Handler = mux
	handler = middleware.RateLimit(cfg.RateLimit)(handler)
	handler = middleware.OptionalAuthenticate(deps.JWT)(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
