package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/listingkit/credits-api/internal/middleware"
	"github.com/listingkit/credits-api/internal/pkg/errorhandler"
	"github.com/listingkit/credits-api/internal/pkg/pagination"
	"github.com/listingkit/credits-api/internal/pkg/response"
	"github.com/listingkit/credits-api/internal/pkg/validator"
)

// Handler serves balance and ledger endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates ledger handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetBalance handles GET /api/v1/credits/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.GetUserID(r.Context())
	if agentID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	summary, err := h.service.GetSummary(r.Context(), agentID)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "get_balance", err)
		return
	}

	response.OK(w, summary)
}

// ListEntries handles GET /api/v1/credits/ledger
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.GetUserID(r.Context())
	if agentID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	h.listForAgent(w, r, agentID)
}

// AdminGetBalance handles GET /api/admin/agents/{id}/credits
func (h *Handler) AdminGetBalance(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid agent ID")
		return
	}

	summary, err := h.service.GetSummary(r.Context(), agentID)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "admin_get_balance", err)
		return
	}

	response.OK(w, summary)
}

// AdminListEntries handles GET /api/admin/agents/{id}/ledger
func (h *Handler) AdminListEntries(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid agent ID")
		return
	}
	h.listForAgent(w, r, agentID)
}

func (h *Handler) listForAgent(w http.ResponseWriter, r *http.Request, agentID uuid.UUID) {
	limit, offset := pagination.FromRequest(r)

	entries, err := h.service.ListEntries(r.Context(), agentID, limit, offset)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "list_ledger", err)
		return
	}

	response.WithMeta(w, entriesToResponse(entries), response.Meta{
		Limit:  limit,
		Offset: offset,
		Count:  len(entries),
	})
}

// Adjust handles POST /api/admin/agents/{id}/credits/adjust
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid agent ID")
		return
	}

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	entry, err := h.service.ApplyManualAdjustment(r.Context(), ManualAdjustment{
		AgentID: agentID,
		Delta:   req.Delta,
		Reason:  req.Reason,
		AdminID: middleware.GetUserID(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDelta):
			response.Error(w, http.StatusBadRequest, "INVALID_DELTA", "Delta must not be zero")
		case errors.Is(err, ErrReasonRequired):
			response.ValidationError(w, map[string]string{"reason": "This field is required"})
		default:
			errorhandler.Internal(r.Context(), w, "manual_adjustment", err)
		}
		return
	}

	balance, err := h.service.GetBalance(r.Context(), agentID)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "manual_adjustment_balance", err)
		return
	}

	response.Created(w, AdjustResponse{
		Entry:   EntryResponseFromEntity(entry),
		Balance: balance,
	})
}

// Search handles GET /api/admin/ledger
// Query: agent_id, reason, listing_id, from, to (RFC 3339), limit, offset
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := SearchFilters{}
	filters.Limit, filters.Offset = pagination.FromRequest(r)

	if v := q.Get("agent_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid agent_id")
			return
		}
		filters.AgentID = &id
	}
	if v := q.Get("listing_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(w, "Invalid listing_id")
			return
		}
		filters.ListingID = &id
	}
	if v := q.Get("reason"); v != "" {
		reason := Reason(v)
		filters.Reason = &reason
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "Invalid from date")
			return
		}
		filters.DateFrom = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			response.BadRequest(w, "Invalid to date")
			return
		}
		filters.DateTo = &t
	}

	entries, err := h.service.Search(r.Context(), filters)
	if err != nil {
		if errors.Is(err, ErrInvalidReason) {
			response.BadRequest(w, "Invalid reason, expected one of: "+reasonList())
			return
		}
		errorhandler.Internal(r.Context(), w, "search_ledger", err)
		return
	}

	response.WithMeta(w, entriesToResponse(entries), response.Meta{
		Limit:  filters.Limit,
		Offset: filters.Offset,
		Count:  len(entries),
	})
}

func reasonList() string {
	names := make([]string, len(Reasons))
	for i, r := range Reasons {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
