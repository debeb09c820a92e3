package reconciliation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/listingkit/credits-api/internal/pkg/errorhandler"
	"github.com/listingkit/credits-api/internal/pkg/response"
)

// Handler exposes the reconciliation report to admins
type Handler struct {
	service *Service
}

// NewHandler creates reconciliation handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Report handles GET /api/admin/reconciliation
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Run(r.Context())
	if err != nil {
		errorhandler.Internal(r.Context(), w, "reconciliation", err)
		return
	}

	response.OK(w, map[string]interface{}{
		"clean":  report.Clean(),
		"report": report,
	})
}

// AdminRoutes returns routes mounted at /api/admin/reconciliation.
func (h *Handler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Report)
	return r
}
