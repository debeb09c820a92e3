package consumption

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the non-error result of a consumption attempt.
type Outcome string

const (
	// OutcomeCharged means one credit was debited and the listing flagged.
	OutcomeCharged Outcome = "charged"
	// OutcomeAlreadyConsumed means the listing had been paid for before.
	OutcomeAlreadyConsumed Outcome = "already_consumed"
)

// Listing is the slice of a listing record the gate needs.
type Listing struct {
	ID             uuid.UUID `db:"id"`
	AgentID        uuid.UUID `db:"agent_id"`
	CreditConsumed bool      `db:"credit_consumed"`
	CreatedAt      time.Time `db:"created_at"`
}
