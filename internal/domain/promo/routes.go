package promo

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns agent promo routes, mounted at /api/v1/promo.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler, limiter func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.With(limiter).Post("/redeem", h.Redeem)

	return r
}

// AdminRoutes returns promo administration routes, mounted at /api/admin/promo-codes.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Get("/{id}/redemptions", h.ListRedemptions)

	return r
}
