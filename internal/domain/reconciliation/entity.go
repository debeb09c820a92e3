package reconciliation

import (
	"time"

	"github.com/google/uuid"
)

// Report lists rows where the ledger disagrees with the records it mirrors.
// An empty report means every charge, purchase and redemption is accounted for.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Consumption entries whose listing is missing or not flagged.
	UnflaggedConsumptions []ListingIssue `json:"unflagged_consumptions"`
	// Flagged listings without a consumption entry.
	UnchargedListings []ListingIssue `json:"uncharged_listings"`
	// Paid orders without a purchase entry for their session.
	OrdersWithoutCredit []OrderIssue `json:"orders_without_credit"`
	// Codes whose redemption count differs from their promo entries.
	PromoMismatches []PromoIssue `json:"promo_mismatches"`
	// Agents whose balance is below zero (possible after manual adjustments).
	NegativeBalances []BalanceIssue `json:"negative_balances"`
}

// Clean reports whether no discrepancy was found.
func (r *Report) Clean() bool {
	return len(r.UnflaggedConsumptions) == 0 &&
		len(r.UnchargedListings) == 0 &&
		len(r.OrdersWithoutCredit) == 0 &&
		len(r.PromoMismatches) == 0 &&
		len(r.NegativeBalances) == 0
}

type ListingIssue struct {
	ListingID uuid.UUID `db:"listing_id" json:"listing_id"`
	AgentID   uuid.UUID `db:"agent_id" json:"agent_id"`
}

type OrderIssue struct {
	OrderID   uuid.UUID `db:"order_id" json:"order_id"`
	AgentID   uuid.UUID `db:"agent_id" json:"agent_id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Credits   int       `db:"credits" json:"credits"`
}

type PromoIssue struct {
	PromoCodeID  uuid.UUID `db:"promo_code_id" json:"promo_code_id"`
	Code         string    `db:"code" json:"code"`
	Redemptions  int       `db:"redemptions" json:"redemptions"`
	LedgerGrants int       `db:"ledger_grants" json:"ledger_grants"`
}

type BalanceIssue struct {
	AgentID uuid.UUID `db:"agent_id" json:"agent_id"`
	Balance int       `db:"balance" json:"balance"`
}
