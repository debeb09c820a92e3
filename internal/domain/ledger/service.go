package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/listingkit/credits-api/internal/pkg/events"
	"github.com/listingkit/credits-api/internal/pkg/metrics"
)

// Service projects balances from the ledger and applies manual adjustments.
type Service struct {
	repo   Repository
	events *events.Publisher
}

// NewService creates a ledger service. publisher may be nil.
func NewService(repo Repository, publisher *events.Publisher) *Service {
	return &Service{repo: repo, events: publisher}
}

// Repository exposes the underlying store for flows that write entries
// inside their own transactions.
func (s *Service) Repository() Repository {
	return s.repo
}

// GetBalance sums every delta of the agent. An agent without entries has 0.
func (s *Service) GetBalance(ctx context.Context, agentID uuid.UUID) (int, error) {
	return s.repo.Balance(ctx, agentID)
}

// GetSummary returns the balance together with per-origin totals.
func (s *Service) GetSummary(ctx context.Context, agentID uuid.UUID) (*Summary, error) {
	totals, err := s.repo.Totals(ctx, agentID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{AgentID: agentID}
	for reason, total := range totals {
		switch reason {
		case ReasonPurchase:
			summary.Purchased += total
		case ReasonPromo:
			summary.Promo += total
		case ReasonManualAdjustment:
			summary.Adjusted += total
		case ReasonListingConsumption:
			summary.Consumed -= total
		default:
			return nil, fmt.Errorf("%w: unknown reason %q in ledger", ErrInternal, reason)
		}
		summary.Balance += total
	}

	return summary, nil
}

// ApplyManualAdjustment inserts a privileged correction. No balance floor is
// enforced: a negative delta may drive the balance below zero.
func (s *Service) ApplyManualAdjustment(ctx context.Context, req ManualAdjustment) (*Entry, error) {
	if req.Delta == 0 {
		return nil, ErrInvalidDelta
	}
	note := strings.TrimSpace(req.Reason)
	if note == "" {
		return nil, ErrReasonRequired
	}

	meta := Metadata{MetaNote: note}
	if req.AdminID != uuid.Nil {
		meta[MetaAdminID] = req.AdminID.String()
	}

	entry := NewEntry(req.AgentID, req.Delta, ReasonManualAdjustment, meta)
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}

	log.Info().
		Str("agent_id", req.AgentID.String()).
		Str("admin_id", req.AdminID.String()).
		Int("delta", req.Delta).
		Str("note", note).
		Msg("Manual ledger adjustment applied")

	s.Committed(ctx, entry)
	return entry, nil
}

// ListEntries returns the agent's history, newest first.
func (s *Service) ListEntries(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListByAgent(ctx, agentID, Pagination{Limit: limit, Offset: offset})
}

// Search returns filtered entries (admin use)
func (s *Service) Search(ctx context.Context, filters SearchFilters) ([]Entry, error) {
	if filters.Reason != nil && !filters.Reason.Valid() {
		return nil, ErrInvalidReason
	}
	return s.repo.Search(ctx, filters)
}

// Committed records metrics and publishes events for entries whose
// transaction has been committed.
func (s *Service) Committed(ctx context.Context, entries ...*Entry) {
	for _, e := range entries {
		metrics.ObserveDelta(string(e.Reason), e.Delta)

		ev := events.LedgerEvent{
			EntryID:   e.ID,
			AgentID:   e.AgentID,
			Delta:     e.Delta,
			Reason:    string(e.Reason),
			CreatedAt: e.CreatedAt,
		}
		if e.ListingID.Valid {
			listingID := e.ListingID.UUID
			ev.ListingID = &listingID
		}
		s.events.PublishLedgerEntry(ctx, ev)
	}
}
