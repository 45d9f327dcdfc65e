package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/softwarehub/pkg/audit"
	"github.com/platinummonkey/softwarehub/pkg/auth"
	"github.com/platinummonkey/softwarehub/pkg/httputil"
	"github.com/platinummonkey/softwarehub/pkg/middleware"
	"github.com/platinummonkey/softwarehub/pkg/observability"
	"github.com/platinummonkey/softwarehub/pkg/software"
	"github.com/platinummonkey/softwarehub/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Dependencies are the handler groups and infrastructure the server mounts.
// Nil handler groups are skipped.
type Dependencies struct {
	Users     *users.Handlers
	Softwares *software.Handlers
	Audit     *audit.Handlers

	Tokens   *auth.TokenManager
	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Limiter  middleware.Limiter
	Logger   *observability.Logger
}

// Options tune the outer middleware chain
type Options struct {
	CORS         httputil.CORSOptions
	MaxBodyBytes int64
	// Tracing wraps the handler with otelhttp
	Tracing     bool
	ServiceName string
}

// Server represents our API server
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(deps Dependencies, opts Options) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewNopLogger()
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: deps.Logger,
	}
	s.setupRoutes(deps, opts)

	// Outside the router so CORS preflights never reach method matching
	outer := httputil.Chain(
		httputil.RecoveryMiddleware(deps.Logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.CORSMiddleware(opts.CORS),
	)
	s.handler = outer(s.router)

	if opts.Tracing {
		name := opts.ServiceName
		if name == "" {
			name = "softwarehub"
		}
		s.handler = otelhttp.NewHandler(s.handler, name)
	}
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(deps Dependencies, opts Options) {
	// Route-aware middleware runs after matching so metrics see the template
	if deps.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(deps.Metrics)))
	}
	if deps.Limiter != nil {
		s.router.Use(middleware.NewRateLimitMiddleware(deps.Limiter, deps.Logger).Handler)
	}
	if opts.MaxBodyBytes > 0 {
		s.router.Use(mux.MiddlewareFunc(httputil.MaxBytesMiddleware(opts.MaxBodyBytes)))
	}

	if deps.Health != nil {
		observability.RegisterHealthRoutes(s.router, deps.Health)
	}
	if deps.Registry != nil {
		observability.RegisterMetricsEndpoint(s.router, deps.Registry)
	}

	var authenticate func(http.Handler) http.Handler
	if deps.Tokens != nil {
		authenticate = middleware.NewAuthMiddleware(deps.Tokens, deps.Logger).Handler
	}

	if deps.Users != nil && authenticate != nil {
		deps.Users.RegisterAuthRoutes(s.router.PathPrefix("/api/auth").Subrouter(), authenticate)

		usersRouter := s.router.PathPrefix("/api/users").Subrouter()
		usersRouter.Use(authenticate, middleware.RequireAdmin)
		deps.Users.RegisterUserRoutes(usersRouter)
	}

	if deps.Softwares != nil && authenticate != nil {
		softwareRouter := s.router.PathPrefix("/api/softwares").Subrouter()
		softwareRouter.Use(authenticate)
		deps.Softwares.RegisterRoutes(softwareRouter)
	}

	if deps.Audit != nil && authenticate != nil {
		auditRouter := s.router.PathPrefix("/api/audit").Subrouter()
		auditRouter.Use(authenticate, middleware.RequireAdmin)
		deps.Audit.RegisterRoutes(auditRouter)
	}

	s.router.NotFoundHandler = http.HandlerFunc(notFound)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
		"error":  "Route not found",
		"path":   r.URL.Path,
		"method": r.Method,
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}
