// Package app wires repositories and services shared by the API server and
// the operator CLI.
package app

import (
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/listingkit/credits-api/internal/config"
	"github.com/listingkit/credits-api/internal/domain/billing"
	"github.com/listingkit/credits-api/internal/domain/consumption"
	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/domain/promo"
	"github.com/listingkit/credits-api/internal/domain/reconciliation"
	"github.com/listingkit/credits-api/internal/pkg/events"
)

// Services holds every domain service.
type Services struct {
	Ledger         *ledger.Service
	Gate           *consumption.Gate
	Promo          *promo.Service
	Billing        *billing.Service
	Reconciliation *reconciliation.Service
}

// NewServices builds the services over db. redisClient may be nil, in which
// case ledger events are not published.
func NewServices(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) *Services {
	ledgerService := ledger.NewService(ledger.NewRepository(db), events.NewPublisher(redisClient))

	return &Services{
		Ledger:         ledgerService,
		Gate:           consumption.NewGate(db, consumption.NewListingRepository(), ledgerService),
		Promo:          promo.NewService(db, promo.NewRepository(db), ledgerService),
		Billing:        billing.NewService(db, billing.NewRepository(db), ledgerService, cfg.Currency),
		Reconciliation: reconciliation.NewService(reconciliation.NewRepository(db)),
	}
}
