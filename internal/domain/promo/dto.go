package promo

import (
	"time"

	"github.com/google/uuid"
)

// RedeemRequest is the agent's redemption body. A blank code is reported
// by the service as CODE_REQUIRED.
type RedeemRequest struct {
	Code string `json:"code" validate:"max=64"`
}

// RedeemResponse answers a successful redemption
type RedeemResponse struct {
	Code         string `json:"code"`
	CreditsAdded int    `json:"credits_added"`
	NewBalance   int    `json:"new_balance"`
}

// CreateRequest is the admin body for a new code
type CreateRequest struct {
	Code           string     `json:"code" validate:"required,promo_code"`
	Credits        int        `json:"credits" validate:"required,gte=1,lte=100000"`
	MaxRedemptions *int       `json:"max_redemptions" validate:"omitempty,gte=1"`
	PerAgentLimit  *int       `json:"per_agent_limit" validate:"omitempty,gte=1"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Notes          string     `json:"notes" validate:"max=500"`
}

// ToInput converts the request for the service
func (r *CreateRequest) ToInput() CreateInput {
	return CreateInput{
		Code:           r.Code,
		Credits:        r.Credits,
		MaxRedemptions: r.MaxRedemptions,
		PerAgentLimit:  r.PerAgentLimit,
		ExpiresAt:      r.ExpiresAt,
		Notes:          r.Notes,
	}
}

// UpdateRequest toggles a code
type UpdateRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// CodeResponse is the admin view of a code
type CodeResponse struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	Credits        int        `json:"credits"`
	MaxRedemptions *int       `json:"max_redemptions"`
	PerAgentLimit  *int       `json:"per_agent_limit"`
	ExpiresAt      *time.Time `json:"expires_at"`
	Active         bool       `json:"active"`
	Notes          string     `json:"notes,omitempty"`
	Redemptions    int        `json:"redemptions"`
	Remaining      *int       `json:"remaining"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RedemptionResponse is the admin view of a redemption
type RedemptionResponse struct {
	ID        uuid.UUID `json:"id"`
	AgentID   uuid.UUID `json:"agent_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CodeResponseFromStats builds the admin view
func CodeResponseFromStats(c *CodeStats) *CodeResponse {
	resp := &CodeResponse{
		ID:             c.ID,
		Code:           c.Code.Code,
		Credits:        c.Credits,
		MaxRedemptions: c.MaxRedemptions,
		PerAgentLimit:  c.PerAgentLimit,
		ExpiresAt:      c.ExpiresAt,
		Active:         c.Active,
		Notes:          c.Notes,
		Redemptions:    c.Redemptions,
		CreatedAt:      c.CreatedAt,
	}
	if c.MaxRedemptions != nil {
		remaining := *c.MaxRedemptions - c.Redemptions
		if remaining < 0 {
			remaining = 0
		}
		resp.Remaining = &remaining
	}
	return resp
}
