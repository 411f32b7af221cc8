package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/deckhand/internal/deckservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *deckservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/decks", h.ListDecks)
	r.Route("/decks/{name}", func(r chi.Router) {
		r.Get("/", h.GetDeck)
		r.Get("/entries/{id}", h.GetEntry)
		r.Post("/sync", h.SyncDeck)
		r.Get("/history", h.History)
		r.Get("/icons/{icon}", h.Icon)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
