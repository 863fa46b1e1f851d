package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"oauth2-token-server/internal/middleware"
)

// Router wires every endpoint onto a chi router
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.ProxyAware)
	r.Use(middleware.Logger(h.Logger))
	r.Use(h.Metrics.Middleware)

	r.Route("/oauth", func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/authorize", NewAuthorizeHandler(h).ServeHTTP)
		r.Post("/authorize/decision", NewDecisionHandler(h).ServeHTTP)
		r.Post("/token", NewTokenHandler(h).ServeHTTP)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/tokeninfo", NewTokenInfoHandler(h).ServeHTTP)
		r.Post("/revoke", NewRevokeHandler(h).ServeHTTP)
	})

	r.Get("/health", NewHealthHandler(h).ServeHTTP)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	return r
}
