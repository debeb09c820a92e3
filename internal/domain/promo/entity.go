package promo

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Code is a redeemable promo code. Only Active changes after creation.
type Code struct {
	ID             uuid.UUID  `db:"id"`
	Code           string     `db:"code"`
	Credits        int        `db:"credits"`
	MaxRedemptions *int       `db:"max_redemptions"`
	PerAgentLimit  *int       `db:"per_agent_limit"`
	ExpiresAt      *time.Time `db:"expires_at"`
	Active         bool       `db:"active"`
	Notes          string     `db:"notes"`
	CreatedAt      time.Time  `db:"created_at"`
}

// ExpiredAt reports whether the code is past its expiry at now.
// A code expiring exactly at now is still valid.
func (c *Code) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

// CodeStats is a code together with its redemption count.
type CodeStats struct {
	Code
	Redemptions int `db:"redemptions"`
}

// Redemption records one successful use of a code by an agent.
//
// Slot is the global use number and AgentSlot the agent's use number; each
// is set only when the matching limit exists, and unique indexes on them
// keep concurrent redemptions from exceeding the limit.
type Redemption struct {
	ID          uuid.UUID `db:"id"`
	PromoCodeID uuid.UUID `db:"promo_code_id"`
	AgentID     uuid.UUID `db:"agent_id"`
	Slot        *int      `db:"slot"`
	AgentSlot   *int      `db:"agent_slot"`
	CreatedAt   time.Time `db:"created_at"`
}

// RedeemResult is returned by a successful redemption.
type RedeemResult struct {
	Code         string
	CreditsAdded int
	NewBalance   int
}

// CreateInput describes a new promo code.
type CreateInput struct {
	Code           string
	Credits        int
	MaxRedemptions *int
	PerAgentLimit  *int
	ExpiresAt      *time.Time
	Notes          string
}

// NormalizeCode trims and upper-cases a code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
