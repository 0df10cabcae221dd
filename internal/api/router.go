package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vaultsnap/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, rt Runtime, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, rt)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Processing settings, applied from the next image on.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)

	r.Get("/status", h.Status)
	r.Get("/preview", h.Preview)
	r.Get("/history", h.History)
	r.Get("/history/{id}", h.HistoryEntry)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
