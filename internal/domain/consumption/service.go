package consumption

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/pkg/database"
	"github.com/listingkit/credits-api/internal/pkg/logger"
	"github.com/listingkit/credits-api/internal/pkg/metrics"
)

// Gate charges exactly one credit per listing.
type Gate struct {
	db       *sqlx.DB
	listings ListingRepository
	ledger   *ledger.Service
}

// NewGate creates the consumption gate
func NewGate(db *sqlx.DB, listings ListingRepository, ledgerService *ledger.Service) *Gate {
	return &Gate{db: db, listings: listings, ledger: ledgerService}
}

// ConsumeOneCredit debits one credit for listingID, owned by agentID.
//
// The balance check, the ledger insert and the listing flag commit together;
// the partial unique index on listing consumption entries guarantees a
// listing is never charged twice even when calls race.
func (g *Gate) ConsumeOneCredit(ctx context.Context, agentID, listingID uuid.UUID) (Outcome, error) {
	var (
		outcome Outcome
		entry   *ledger.Entry
	)

	err := database.RetryOnConflict(ctx, "consume_credit", func() error {
		entry = nil
		return database.InTx(ctx, g.db, func(tx *sqlx.Tx) error {
			var err error
			outcome, entry, err = g.consumeTx(ctx, tx, agentID, listingID)
			return err
		})
	})

	log := logger.FromContext(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrInsufficientCredits):
		metrics.Consumptions.WithLabelValues("insufficient").Inc()
		return "", err
	case errors.Is(err, ErrListingNotFound):
		metrics.Consumptions.WithLabelValues("not_found").Inc()
		return "", err
	default:
		metrics.Consumptions.WithLabelValues("error").Inc()
		if !errors.Is(err, ErrInternal) && !errors.Is(err, ledger.ErrInternal) {
			err = fmt.Errorf("%w: consume credit: %w", ErrInternal, err)
		}
		return "", err
	}

	metrics.Consumptions.WithLabelValues(string(outcome)).Inc()
	if entry != nil {
		g.ledger.Committed(ctx, entry)
		log.Info().
			Str("agent_id", agentID.String()).
			Str("listing_id", listingID.String()).
			Msg("Listing credit consumed")
	}

	return outcome, nil
}

func (g *Gate) consumeTx(ctx context.Context, tx *sqlx.Tx, agentID, listingID uuid.UUID) (Outcome, *ledger.Entry, error) {
	listing, err := g.listings.GetTx(ctx, tx, listingID)
	if err != nil {
		return "", nil, err
	}
	if listing.AgentID != agentID {
		return "", nil, ErrListingNotFound
	}
	if listing.CreditConsumed {
		return OutcomeAlreadyConsumed, nil, nil
	}

	repo := g.ledger.Repository()
	balance, err := repo.BalanceTx(ctx, tx, agentID)
	if err != nil {
		return "", nil, err
	}
	if balance <= 0 {
		return "", nil, ErrInsufficientCredits
	}

	entry := ledger.NewEntry(agentID, -1, ledger.ReasonListingConsumption, nil).ForListing(listingID)
	if err := repo.InsertTx(ctx, tx, entry); err != nil {
		return "", nil, err
	}

	if err := g.listings.MarkConsumedTx(ctx, tx, listingID); err != nil {
		return "", nil, err
	}

	return OutcomeCharged, entry, nil
}
