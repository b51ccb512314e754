// Package api exposes the identity service over HTTP. It is a thin adapter:
// request parsing, validation, status-code mapping, and audit logging; all
// state lives behind identity.Service.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/jmcleod/gatehouse/identity"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	svc      *identity.Service
	audit    *auditLogger
	limiter  *ipRateLimiter
	validate *validator.Validate
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.audit = newAuditLogger(logger)
	}
}

// New creates a new API instance around the identity service.
func New(svc *identity.Service, opts ...Option) *API {
	a := &API{
		svc:      svc,
		limiter:  newIPRateLimiter(loginRatePerSecond, loginBurst),
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.audit == nil {
		a.audit = newAuditLogger(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	}
	return a
}

// Router returns a chi.Router with all routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/openapi.yaml",
		Path:    "docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/openapi.yaml",
		Path:    "redoc",
	}, nil))

	r.Get("/health", a.Health)
	r.Post("/register", a.Register)
	r.Post("/login", a.Login)
	r.Post("/user_data", a.UserData)
	r.Post("/update_user_data", a.UpdateUserData)
	r.Post("/reset_request", a.ResetRequest)
	r.Post("/check_otp", a.CheckOTP)

	return r
}
