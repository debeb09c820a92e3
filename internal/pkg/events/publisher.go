// Package events publishes committed ledger entries to Redis pub/sub so
// dashboards can refresh balances without polling.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LedgerChannel is the pub/sub channel carrying LedgerEvent payloads.
const LedgerChannel = "credits:ledger"

const publishTimeout = time.Second

// LedgerEvent describes one committed ledger entry.
type LedgerEvent struct {
	EntryID   uuid.UUID  `json:"entry_id"`
	AgentID   uuid.UUID  `json:"agent_id"`
	Delta     int        `json:"delta"`
	Reason    string     `json:"reason"`
	ListingID *uuid.UUID `json:"listing_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Publisher sends ledger events. A nil client turns it into a no-op.
type Publisher struct {
	client *redis.Client
}

// NewPublisher creates a publisher backed by client (may be nil).
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishLedgerEntry is best effort: the ledger row is already committed and
// remains the source of truth, so failures are only logged.
func (p *Publisher) PublishLedgerEntry(ctx context.Context, ev LedgerEvent) {
	if p == nil || p.client == nil {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode ledger event")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, LedgerChannel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("entry_id", ev.EntryID.String()).Msg("Failed to publish ledger event")
	}
}
