package consumption

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns listing routes, mounted at /api/v1/listings.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/{id}/consume-credit", h.Consume)

	return r
}
