// Package httptransport assembles the service's public HTTP surface.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"formintake/internal/platform/middleware"
	"formintake/pkg/platform/httputil"
)

// APIPrefix is the versioned prefix every route is also served under.
const APIPrefix = "/api/v1"

const welcomeMessage = "Welcome to the Simple API Service"

// RouteRegistrar is implemented by module handlers.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// Deps collects what the router mounts. Metrics may be nil.
type Deps struct {
	Logger        *slog.Logger
	Registrations RouteRegistrar
	Health        RouteRegistrar
	Metrics       http.Handler
}

// NewRouter mounts every module both at the root and under APIPrefix.
func NewRouter(deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/", welcome)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route(APIPrefix, func(api chi.Router) {
		api.Get("/", welcome)
		mountModules(api, deps)
	})
	mountModules(r, deps)
	return r
}

func mountModules(r chi.Router, deps Deps) {
	if deps.Health != nil {
		deps.Health.Register(r)
	}
	if deps.Registrations != nil {
		deps.Registrations.Register(r)
	}
}

func welcome(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": welcomeMessage})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusNotFound, httputil.NewErrorResponse(httputil.MessageNotFound, nil))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusMethodNotAllowed, httputil.NewErrorResponse("Method Not Allowed", nil))
}
