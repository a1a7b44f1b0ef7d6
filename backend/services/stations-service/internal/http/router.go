package httpserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"radiowalk/backend/services/stations-service/internal/http/handlers"
	"radiowalk/backend/services/stations-service/internal/http/middleware"
)

// Routes groups handlers.
type Routes struct {
	Stations    *handlers.StationsHandler
	Users       *handlers.UsersHandler
	SignIn      http.HandlerFunc
	Health      http.HandlerFunc
	NearbyFeed  http.HandlerFunc
	Tokens      middleware.TokenValidator
	InternalKey string
}

// NewRouter registers endpoints. Every route resolves an optional bearer token; mutations and
// personal views additionally require one.
func NewRouter(routes Routes, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	authn := middleware.Authenticate(routes.Tokens)

	public := func(h http.HandlerFunc) http.Handler {
		return authn(h)
	}
	private := func(h http.HandlerFunc) http.Handler {
		return authn(middleware.RequireUser(h))
	}

	if routes.Health != nil {
		mux.Handle("GET /health", routes.Health)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	if routes.SignIn != nil {
		mux.Handle("POST /internal/auth/sign-in", middleware.RequireInternalKey(routes.InternalKey)(routes.SignIn))
	}

	if s := routes.Stations; s != nil {
		mux.Handle("POST /stations", private(s.Create))
		mux.Handle("GET /stations", public(s.List))
		mux.Handle("GET /stations/nearby", public(s.Nearby))
		mux.Handle("GET /stations/mine", private(s.Mine))
		mux.Handle("GET /stations/shared", private(s.Shared))
		mux.Handle("GET /stations/validate-stream", public(s.ValidateStream))
		mux.Handle("GET /stations/{id}", public(s.Get))
		mux.Handle("PATCH /stations/{id}", private(s.Update))
		mux.Handle("DELETE /stations/{id}", private(s.Delete))
		mux.Handle("PUT /stations/{id}/radio-source", private(s.UpdateRadioSource))
		mux.Handle("GET /stations/{id}/users", private(s.Access))
		mux.Handle("POST /stations/{id}/shares", private(s.Share))
		mux.Handle("DELETE /stations/{id}/shares/{userId}", private(s.Unshare))
	}

	if u := routes.Users; u != nil {
		mux.Handle("GET /users/me", private(u.Me))
		mux.Handle("PATCH /users/me", private(u.UpdateMe))
		mux.Handle("GET /users/me/stats", private(u.Stats))
		mux.Handle("GET /users/search", private(u.Search))
		mux.Handle("GET /users/username-available", private(u.UsernameAvailable))
		mux.Handle("GET /users/{id}", public(u.Public))
	}

	if routes.NearbyFeed != nil {
		mux.Handle("GET /ws/nearby", middleware.QueryToken(public(routes.NearbyFeed)))
	}

	return middleware.Chain(mux,
		middleware.Recover(logger),
		middleware.RequestLogger(logger),
		middleware.Metrics,
	)
}
