package reconciliation

import (
	"context"
	"time"

	"github.com/listingkit/credits-api/internal/pkg/logger"
)

// Service cross-checks the ledger against listings, orders and redemptions.
type Service struct {
	repo *Repository
}

// NewService creates reconciliation service
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Run builds a fresh report. It only reads.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	report := &Report{GeneratedAt: time.Now().UTC()}
	var err error

	if report.UnflaggedConsumptions, err = s.repo.unflaggedConsumptions(ctx); err != nil {
		return nil, err
	}
	if report.UnchargedListings, err = s.repo.unchargedListings(ctx); err != nil {
		return nil, err
	}
	if report.OrdersWithoutCredit, err = s.repo.ordersWithoutCredit(ctx); err != nil {
		return nil, err
	}
	if report.PromoMismatches, err = s.repo.promoMismatches(ctx); err != nil {
		return nil, err
	}
	if report.NegativeBalances, err = s.repo.negativeBalances(ctx); err != nil {
		return nil, err
	}

	event := logger.FromContext(ctx).Info()
	if !report.Clean() {
		event = logger.FromContext(ctx).Warn()
	}
	event.
		Int("unflagged_consumptions", len(report.UnflaggedConsumptions)).
		Int("uncharged_listings", len(report.UnchargedListings)).
		Int("orders_without_credit", len(report.OrdersWithoutCredit)).
		Int("promo_mismatches", len(report.PromoMismatches)).
		Int("negative_balances", len(report.NegativeBalances)).
		Msg("Ledger reconciliation finished")

	return report, nil
}
