package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reason tags the origin of a ledger entry. The set is closed: the schema
// rejects anything else.
type Reason string

const (
	ReasonPurchase           Reason = "purchase"
	ReasonPromo              Reason = "promo"
	ReasonManualAdjustment   Reason = "manual_adjustment"
	ReasonListingConsumption Reason = "listing_consume"
)

// Reasons lists every valid reason.
var Reasons = []Reason{ReasonPurchase, ReasonPromo, ReasonManualAdjustment, ReasonListingConsumption}

// Valid reports whether r is one of Reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonPurchase, ReasonPromo, ReasonManualAdjustment, ReasonListingConsumption:
		return true
	}
	return false
}

// Metadata keys written by the credit flows.
const (
	MetaPromoCode = "promo_code"
	MetaSessionID = "session_id"
	MetaPackageID = "package_id"
	MetaNote      = "note"
	MetaAdminID   = "admin_id"
)

// Metadata is the opaque audit payload stored as a JSON object.
type Metadata map[string]string

func (m Metadata) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Metadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type: %T", src)
	}

	out := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode metadata: %w", err)
		}
	}
	*m = out
	return nil
}

// Entry is an immutable ledger row. An agent's balance is the sum of the
// agent's deltas.
type Entry struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	AgentID   uuid.UUID     `db:"agent_id" json:"agent_id"`
	Delta     int           `db:"delta" json:"delta"`
	Reason    Reason        `db:"reason" json:"reason"`
	ListingID uuid.NullUUID `db:"listing_id" json:"listing_id"`
	Metadata  Metadata      `db:"metadata" json:"metadata"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// NewEntry builds an entry with a fresh id and timestamp.
func NewEntry(agentID uuid.UUID, delta int, reason Reason, meta Metadata) *Entry {
	if meta == nil {
		meta = Metadata{}
	}
	return &Entry{
		ID:        uuid.New(),
		AgentID:   agentID,
		Delta:     delta,
		Reason:    reason,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
}

// ForListing attaches the listing the entry is charged to.
func (e *Entry) ForListing(listingID uuid.UUID) *Entry {
	e.ListingID = uuid.NullUUID{UUID: listingID, Valid: true}
	return e
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// SearchFilters provides admin-facing ledger filtering.
type SearchFilters struct {
	AgentID   *uuid.UUID
	Reason    *Reason
	ListingID *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Offset    int
}

// Summary is the balance projection broken down by origin.
type Summary struct {
	AgentID   uuid.UUID `json:"agent_id"`
	Balance   int       `json:"balance"`
	Purchased int       `json:"purchased"`
	Promo     int       `json:"promo"`
	Adjusted  int       `json:"adjusted"`
	Consumed  int       `json:"consumed"`
}

// ManualAdjustment is a privileged correction request.
type ManualAdjustment struct {
	AgentID uuid.UUID
	Delta   int
	Reason  string
	AdminID uuid.UUID
}
