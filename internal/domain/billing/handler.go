package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/listingkit/credits-api/internal/middleware"
	"github.com/listingkit/credits-api/internal/pkg/errorhandler"
	"github.com/listingkit/credits-api/internal/pkg/logger"
	"github.com/listingkit/credits-api/internal/pkg/pagination"
	"github.com/listingkit/credits-api/internal/pkg/response"
	"github.com/listingkit/credits-api/internal/pkg/webhook"
)

const maxWebhookBody = 64 << 10

// Handler handles billing HTTP requests
type Handler struct {
	service  *Service
	verifier *webhook.Verifier
}

// NewHandler creates billing handler
func NewHandler(service *Service, verifier *webhook.Verifier) *Handler {
	return &Handler{service: service, verifier: verifier}
}

// ListPackages handles GET /api/v1/credits/packages
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := h.service.ListPackages(r.Context(), true)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "list_packages", err)
		return
	}

	items := make([]*PackageResponse, 0, len(packages))
	for i := range packages {
		items = append(items, PackageResponseFromEntity(&packages[i], h.service.Currency()))
	}

	response.OK(w, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

// ListOrders handles GET /api/v1/credits/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	agentID := middleware.GetUserID(r.Context())
	if agentID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}
	limit, offset := pagination.FromRequest(r)

	orders, err := h.service.ListOrders(r.Context(), agentID, limit, offset)
	if err != nil {
		errorhandler.Internal(r.Context(), w, "list_orders", err)
		return
	}

	items := make([]*OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, OrderResponseFromEntity(&orders[i], h.service.Currency()))
	}

	response.WithMeta(w, items, response.Meta{Limit: limit, Offset: offset, Count: len(items)})
}

// PaymentWebhook handles POST /webhooks/payments
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Unreadable body")
		return
	}

	if err := h.verifier.Verify(payload, r.Header.Get(webhook.SignatureHeader)); err != nil {
		log.Warn().Err(err).Str("ip", r.RemoteAddr).Msg("Rejected payment webhook")
		response.Unauthorized(w, "Invalid signature")
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	if event.Type != EventCheckoutCompleted {
		log.Debug().Str("event_type", event.Type).Msg("Ignoring payment event")
		response.OK(w, WebhookResponse{Status: "ignored"})
		return
	}

	agentID, err := uuid.Parse(event.Data.AgentID)
	if err != nil {
		response.ValidationError(w, map[string]string{"agent_id": "Invalid value"})
		return
	}

	// A package id that is not a UUID cannot name a package we sell.
	packageID, err := uuid.Parse(event.Data.PackageID)
	if err != nil {
		packageID = uuid.Nil
	}

	outcome, err := h.service.HandlePaymentCompleted(ctx, PaymentCompleted{
		SessionID:  event.Data.SessionID,
		AgentID:    agentID,
		PackageID:  packageID,
		PaymentRef: event.Data.PaymentRef,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionRequired):
			response.ValidationError(w, map[string]string{"session_id": "This field is required"})
		case errors.Is(err, ErrUnknownPackage):
			response.Error(w, http.StatusNotFound, "UNKNOWN_PACKAGE", "Unknown credit package")
		default:
			errorhandler.Internal(ctx, w, "payment_webhook", err)
		}
		return
	}

	response.OK(w, WebhookResponse{Status: string(outcome)})
}
