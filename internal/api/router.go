package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cardspace/cardspace/internal/auth"
)

// NewRouter wires the card and message routes. With a non-nil issuer every
// route except the greeting and health checks requires a bearer token.
func NewRouter(apiHandler *APIHandler, issuer *auth.Issuer) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger)           // Request id + structured access log
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/", apiHandler.RootHandler)
	r.Get("/health", apiHandler.HealthHandler)

	protected := func(r chi.Router) {
		if issuer != nil {
			r.Use(JWTAuthMiddleware(issuer))
		}
		resourceRoutes(r, apiHandler)
	}

	r.Group(protected)

	// The frontend talks to the same routes under /api.
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)
		r.Group(protected)
	})

	return r
}

func resourceRoutes(r chi.Router, h *APIHandler) {
	r.Get("/messages", h.ListMessagesHandler)
	r.Post("/messages", h.PostMessageHandler)

	r.Route("/cards", func(r chi.Router) {
		r.Get("/", h.ListCardsHandler)
		r.Post("/", h.CreateCardHandler)

		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", h.ReplaceCardHandler)
			r.Delete("/", h.DeleteCardHandler)
			r.Patch("/move", h.MoveCardHandler)
			r.Patch("/resize", h.ResizeCardHandler)
			r.Patch("/content", h.UpdateContentHandler)
			r.Patch("/title", h.UpdateTitleHandler)
			r.Get("/suggestions", h.CardSuggestionsHandler)
		})
	})
}
