package ledger

import (
	"time"

	"github.com/google/uuid"
)

// AdjustRequest is the body of a manual adjustment.
type AdjustRequest struct {
	Delta  int    `json:"delta" validate:"nonzero"`
	Reason string `json:"reason" validate:"required,max=500"`
}

// BalanceResponse is returned by the balance endpoints.
type BalanceResponse struct {
	AgentID uuid.UUID `json:"agent_id"`
	Balance int       `json:"balance"`
}

// EntryResponse is the public view of a ledger entry.
type EntryResponse struct {
	ID        uuid.UUID         `json:"id"`
	AgentID   uuid.UUID         `json:"agent_id"`
	Delta     int               `json:"delta"`
	Reason    Reason            `json:"reason"`
	ListingID *uuid.UUID        `json:"listing_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AdjustResponse is returned after a manual adjustment.
type AdjustResponse struct {
	Entry   *EntryResponse `json:"entry"`
	Balance int            `json:"balance"`
}

// EntryResponseFromEntity converts an entry to its response.
func EntryResponseFromEntity(e *Entry) *EntryResponse {
	resp := &EntryResponse{
		ID:        e.ID,
		AgentID:   e.AgentID,
		Delta:     e.Delta,
		Reason:    e.Reason,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
	if e.ListingID.Valid {
		id := e.ListingID.UUID
		resp.ListingID = &id
	}
	return resp
}

func entriesToResponse(entries []Entry) []*EntryResponse {
	items := make([]*EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, EntryResponseFromEntity(&entries[i]))
	}
	return items
}
