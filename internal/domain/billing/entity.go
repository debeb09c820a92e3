package billing

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
)

// Outcome is the non-error result of a payment notification.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
)

// OrderStatusPaid is the only status an order is written with: orders are
// recorded once the provider confirms payment.
const OrderStatusPaid = "paid"

// Package is a purchasable bundle of credits
type Package struct {
	ID               uuid.UUID `db:"id"`
	Slug             string    `db:"slug"`
	Name             string    `db:"name"`
	Credits          int       `db:"credits"`
	PriceCents       int64     `db:"price_cents"`
	ExternalPriceRef string    `db:"external_price_ref"`
	Active           bool      `db:"active"`
}

// Price returns the package price in currency.
func (p *Package) Price(currency string) *money.Money {
	return money.New(p.PriceCents, currency)
}

// Order is the record of a completed checkout session.
type Order struct {
	ID                 uuid.UUID `db:"id"`
	AgentID            uuid.UUID `db:"agent_id"`
	PackageID          uuid.UUID `db:"package_id"`
	Credits            int       `db:"credits"`
	PriceCents         int64     `db:"price_cents"`
	Status             string    `db:"status"`
	ExternalSessionID  string    `db:"external_session_id"`
	ExternalPaymentRef string    `db:"external_payment_ref"`
	CreatedAt          time.Time `db:"created_at"`
}

// PaymentCompleted is a verified notification that a checkout session was paid.
type PaymentCompleted struct {
	SessionID  string
	AgentID    uuid.UUID
	PackageID  uuid.UUID
	PaymentRef string
}

// PackageInput creates or updates a package identified by Slug.
type PackageInput struct {
	Slug             string
	Name             string
	Credits          int
	PriceCents       int64
	ExternalPriceRef string
	Active           bool
}
