package promo

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/listingkit/credits-api/internal/middleware"
	"github.com/listingkit/credits-api/internal/pkg/errorhandler"
	"github.com/listingkit/credits-api/internal/pkg/pagination"
	"github.com/listingkit/credits-api/internal/pkg/response"
	"github.com/listingkit/credits-api/internal/pkg/validator"
)

// Handler handles promo HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates promo handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Redeem handles POST /api/v1/promo/redeem
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.GetUserID(r.Context())
	if agentID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.Redeem(r.Context(), req.Code, agentID)
	if err != nil {
		h.writeError(w, r, "redeem_promo", err)
		return
	}

	response.OK(w, RedeemResponse{
		Code:         result.Code,
		CreditsAdded: result.CreditsAdded,
		NewBalance:   result.NewBalance,
	})
}

// Create handles POST /api/admin/promo-codes
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	code, err := h.service.Create(r.Context(), req.ToInput())
	if err != nil {
		h.writeError(w, r, "create_promo", err)
		return
	}

	response.Created(w, CodeResponseFromStats(&CodeStats{Code: *code}))
}

// List handles GET /api/admin/promo-codes
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination.FromRequest(r)

	codes, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "list_promo", err)
		return
	}

	items := make([]*CodeResponse, 0, len(codes))
	for i := range codes {
		items = append(items, CodeResponseFromStats(&codes[i]))
	}

	response.WithMeta(w, items, response.Meta{Limit: limit, Offset: offset, Count: len(items)})
}

// Get handles GET /api/admin/promo-codes/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid promo code ID")
		return
	}

	code, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get_promo", err)
		return
	}

	response.OK(w, CodeResponseFromStats(code))
}

// Update handles PATCH /api/admin/promo-codes/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid promo code ID")
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	code, err := h.service.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		h.writeError(w, r, "update_promo", err)
		return
	}

	response.OK(w, CodeResponseFromStats(code))
}

// ListRedemptions handles GET /api/admin/promo-codes/{id}/redemptions
func (h *Handler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid promo code ID")
		return
	}
	limit, offset := pagination.FromRequest(r)

	redemptions, err := h.service.ListRedemptions(r.Context(), id, limit, offset)
	if err != nil {
		h.writeError(w, r, "list_redemptions", err)
		return
	}

	items := make([]RedemptionResponse, 0, len(redemptions))
	for _, red := range redemptions {
		items = append(items, RedemptionResponse{ID: red.ID, AgentID: red.AgentID, CreatedAt: red.CreatedAt})
	}

	response.WithMeta(w, items, response.Meta{Limit: limit, Offset: offset, Count: len(items)})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	switch {
	case errors.Is(err, ErrCodeRequired):
		response.Error(w, http.StatusBadRequest, "CODE_REQUIRED", "Promo code is required")
	case errors.Is(err, ErrPromoNotFound):
		response.Error(w, http.StatusNotFound, "PROMO_NOT_FOUND", "Promo code not found")
	case errors.Is(err, ErrPromoInactive):
		response.Error(w, http.StatusConflict, "PROMO_INACTIVE", "Promo code is no longer active")
	case errors.Is(err, ErrPromoExpired):
		response.Error(w, http.StatusConflict, "PROMO_EXPIRED", "Promo code has expired")
	case errors.Is(err, ErrPromoExhausted):
		response.Error(w, http.StatusConflict, "PROMO_EXHAUSTED", "Promo code has been fully redeemed")
	case errors.Is(err, ErrPerAgentLimitReached):
		response.Error(w, http.StatusConflict, "PER_AGENT_LIMIT_REACHED", "You have already redeemed this promo code")
	case errors.Is(err, ErrPromoCodeExists):
		response.Error(w, http.StatusConflict, "PROMO_CODE_EXISTS", "A promo code with this code already exists")
	case errors.Is(err, ErrInvalidPromo):
		response.BadRequest(w, "Credits and limits must be positive")
	default:
		errorhandler.Internal(r.Context(), w, operation, err)
	}
}
