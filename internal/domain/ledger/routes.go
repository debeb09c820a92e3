package ledger

import "github.com/go-chi/chi/v5"

// AdminAgentRoutes returns per-agent admin routes, mounted at /api/admin/agents.
func (h *Handler) AdminAgentRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}/credits", h.AdminGetBalance)
	r.Get("/{id}/ledger", h.AdminListEntries)
	r.Post("/{id}/credits/adjust", h.Adjust)

	return r
}
