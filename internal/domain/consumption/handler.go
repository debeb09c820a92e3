package consumption

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/middleware"
	"github.com/listingkit/credits-api/internal/pkg/errorhandler"
	"github.com/listingkit/credits-api/internal/pkg/response"
)

// ConsumeResponse reports the outcome and the balance after it.
type ConsumeResponse struct {
	ListingID uuid.UUID `json:"listing_id"`
	Outcome   Outcome   `json:"outcome"`
	Charged   bool      `json:"charged"`
	Balance   int       `json:"balance"`
}

// Handler exposes the gate over HTTP
type Handler struct {
	gate   *Gate
	ledger *ledger.Service
}

// NewHandler creates consumption handler
func NewHandler(gate *Gate, ledgerService *ledger.Service) *Handler {
	return &Handler{gate: gate, ledger: ledgerService}
}

// Consume handles POST /api/v1/listings/{id}/consume-credit
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.GetUserID(r.Context())
	if agentID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid listing ID")
		return
	}

	outcome, err := h.gate.ConsumeOneCredit(r.Context(), agentID, listingID)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientCredits):
			response.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_CREDITS", "Not enough credits to publish this listing")
		case errors.Is(err, ErrListingNotFound):
			response.Error(w, http.StatusNotFound, "LISTING_NOT_FOUND", "Listing not found")
		default:
			errorhandler.Internal(r.Context(), w, "consume_credit", err)
		}
		return
	}

	balance, err := h.ledger.GetBalance(r.Context(), agentID)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "consume_credit_balance", err)
		return
	}

	response.OK(w, ConsumeResponse{
		ListingID: listingID,
		Outcome:   outcome,
		Charged:   outcome == OutcomeCharged,
		Balance:   balance,
	})
}
