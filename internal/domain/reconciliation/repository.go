package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/listingkit/credits-api/internal/pkg/database"
)

const queryTimeout = 30 * time.Second

var ErrInternal = errors.New("internal error")

// Repository runs the read-only consistency queries.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates reconciliation repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) unflaggedConsumptions(ctx context.Context) ([]ListingIssue, error) {
	out := make([]ListingIssue, 0)
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT e.listing_id AS listing_id, e.agent_id AS agent_id
		FROM agent_credit_ledger e
		LEFT JOIN listings l ON l.id = e.listing_id
		WHERE e.reason = 'listing_consume'
		  AND e.listing_id IS NOT NULL
		  AND (l.id IS NULL OR l.credit_consumed = ?)
		ORDER BY e.created_at
	`), false)
	return out, wrap("unflagged consumptions", err)
}

func (r *Repository) unchargedListings(ctx context.Context) ([]ListingIssue, error) {
	out := make([]ListingIssue, 0)
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT l.id AS listing_id, l.agent_id AS agent_id
		FROM listings l
		WHERE l.credit_consumed = ?
		  AND NOT EXISTS (
			SELECT 1 FROM agent_credit_ledger e
			WHERE e.listing_id = l.id AND e.reason = 'listing_consume'
		  )
		ORDER BY l.created_at
	`), true)
	return out, wrap("uncharged listings", err)
}

func (r *Repository) ordersWithoutCredit(ctx context.Context) ([]OrderIssue, error) {
	out := make([]OrderIssue, 0)
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT o.id AS order_id, o.agent_id AS agent_id,
		       o.external_session_id AS session_id, o.credits AS credits
		FROM credit_orders o
		WHERE o.status = 'paid'
		  AND NOT EXISTS (
			SELECT 1 FROM agent_credit_ledger e
			WHERE e.reason = 'purchase'
			  AND e.agent_id = o.agent_id
			  AND `+database.JSONText(r.db, "e.metadata", "session_id")+` = o.external_session_id
		  )
		ORDER BY o.created_at
	`))
	return out, wrap("orders without credit", err)
}

func (r *Repository) promoMismatches(ctx context.Context) ([]PromoIssue, error) {
	out := make([]PromoIssue, 0)
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		WITH counts AS (
			SELECT p.id, p.code,
			       (SELECT COUNT(*) FROM promo_redemptions pr WHERE pr.promo_code_id = p.id) AS redemptions,
			       (SELECT COUNT(*) FROM agent_credit_ledger e
			         WHERE e.reason = 'promo'
			           AND `+database.JSONText(r.db, "e.metadata", "promo_code")+` = p.code) AS ledger_grants
			FROM promo_codes p
		)
		SELECT id AS promo_code_id, code, redemptions, ledger_grants
		FROM counts
		WHERE redemptions <> ledger_grants
		ORDER BY code
	`))
	return out, wrap("promo mismatches", err)
}

func (r *Repository) negativeBalances(ctx context.Context) ([]BalanceIssue, error) {
	out := make([]BalanceIssue, 0)
	err := r.db.SelectContext(ctx, &out, r.db.Rebind(`
		SELECT agent_id, SUM(delta) AS balance
		FROM agent_credit_ledger
		GROUP BY agent_id
		HAVING SUM(delta) < 0
		ORDER BY SUM(delta)
	`))
	return out, wrap("negative balances", err)
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, what, err)
}
