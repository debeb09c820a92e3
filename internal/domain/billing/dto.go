package billing

import (
	"time"

	"github.com/google/uuid"
)

// EventCheckoutCompleted is the only provider event that grants credits.
const EventCheckoutCompleted = "checkout.session.completed"

// WebhookEvent is the provider notification envelope
type WebhookEvent struct {
	Type string             `json:"type"`
	Data WebhookSessionData `json:"data"`
}

// WebhookSessionData carries the completed session
type WebhookSessionData struct {
	SessionID  string `json:"session_id"`
	AgentID    string `json:"agent_id"`
	PackageID  string `json:"package_id"`
	PaymentRef string `json:"payment_ref"`
}

// WebhookResponse acknowledges a notification
type WebhookResponse struct {
	Status string `json:"status"`
}

// PackageResponse is the catalog view of a package
type PackageResponse struct {
	ID           uuid.UUID `json:"id"`
	Slug         string    `json:"slug"`
	Name         string    `json:"name"`
	Credits      int       `json:"credits"`
	PriceCents   int64     `json:"price_cents"`
	Currency     string    `json:"currency"`
	DisplayPrice string    `json:"display_price"`
	Active       bool      `json:"active"`
}

// OrderResponse is the agent view of an order
type OrderResponse struct {
	ID           uuid.UUID `json:"id"`
	PackageID    uuid.UUID `json:"package_id"`
	Credits      int       `json:"credits"`
	Status       string    `json:"status"`
	DisplayPrice string    `json:"display_price"`
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// PackageResponseFromEntity renders a package in currency
func PackageResponseFromEntity(p *Package, currency string) *PackageResponse {
	return &PackageResponse{
		ID:           p.ID,
		Slug:         p.Slug,
		Name:         p.Name,
		Credits:      p.Credits,
		PriceCents:   p.PriceCents,
		Currency:     currency,
		DisplayPrice: p.Price(currency).Display(),
		Active:       p.Active,
	}
}

// OrderResponseFromEntity renders an order in currency
func OrderResponseFromEntity(o *Order, currency string) *OrderResponse {
	price := &Package{PriceCents: o.PriceCents}
	return &OrderResponse{
		ID:           o.ID,
		PackageID:    o.PackageID,
		Credits:      o.Credits,
		Status:       o.Status,
		DisplayPrice: price.Price(currency).Display(),
		SessionID:    o.ExternalSessionID,
		CreatedAt:    o.CreatedAt,
	}
}
