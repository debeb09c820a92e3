package billing

import "github.com/go-chi/chi/v5"

// WebhookRoutes returns payment provider routes, mounted at /webhooks.
// They are authenticated by signature, not JWT.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/payments", h.PaymentWebhook)

	return r
}
