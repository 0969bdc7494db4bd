package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/kiranshivaraju/repograder/internal/api/middleware"
	"github.com/kiranshivaraju/repograder/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler        http.HandlerFunc
	EnqueueHandler       http.HandlerFunc
	QueueStatusHandler   http.HandlerFunc
	GetEvaluationHandler http.HandlerFunc
	StatusHandler        http.HandlerFunc
	CheckAccessHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Staff-only routes
	r.Group(func(r chi.Router) {
		if deps.Auth != nil {
			r.Use(deps.Auth.Authenticate)
		}
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Get("/api/v1/queue", orNotImplemented(deps.QueueStatusHandler))
		r.Post("/api/v1/repos/access", orNotImplemented(deps.CheckAccessHandler))

		r.Route("/api/v1/submissions/{submissionID}", func(r chi.Router) {
			r.Post("/evaluate", orNotImplemented(deps.EnqueueHandler))
			r.Get("/evaluation", orNotImplemented(deps.GetEvaluationHandler))
			r.Get("/status", orNotImplemented(deps.StatusHandler))
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "No such endpoint", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
