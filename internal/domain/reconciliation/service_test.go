package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingkit/credits-api/internal/domain/billing"
	"github.com/listingkit/credits-api/internal/domain/consumption"
	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/domain/promo"
	"github.com/listingkit/credits-api/internal/pkg/database/dbtest"
)

func TestRun_CleanAfterRegularFlows(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ledgerSvc := ledger.NewService(ledger.NewRepository(db), nil)
	billingSvc := billing.NewService(db, billing.NewRepository(db), ledgerSvc, "USD")
	promoSvc := promo.NewService(db, promo.NewRepository(db), ledgerSvc)
	gate := consumption.NewGate(db, consumption.NewListingRepository(), ledgerSvc)
	agentID := uuid.New()

	pkg, err := billingSvc.UpsertPackage(ctx, billing.PackageInput{Slug: "starter", Name: "Starter", Credits: 5, PriceCents: 2500, Active: true})
	require.NoError(t, err)
	_, err = billingSvc.HandlePaymentCompleted(ctx, billing.PaymentCompleted{SessionID: "cs_ok", AgentID: agentID, PackageID: pkg.ID})
	require.NoError(t, err)

	_, err = promoSvc.Create(ctx, promo.CreateInput{Code: "HELLO", Credits: 2})
	require.NoError(t, err)
	_, err = promoSvc.Redeem(ctx, "hello", agentID)
	require.NoError(t, err)

	listingID := dbtest.CreateListing(t, db, agentID)
	_, err = gate.ConsumeOneCredit(ctx, agentID, listingID)
	require.NoError(t, err)

	report, err := NewService(NewRepository(db)).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean(), "%+v", report)
}

func TestRun_FindsDiscrepancies(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	ledgerRepo := ledger.NewRepository(db)
	agentID := uuid.New()

	// Consumption entry whose listing flag was never set.
	unflagged := dbtest.CreateListing(t, db, agentID)
	require.NoError(t, ledgerRepo.Insert(ctx,
		ledger.NewEntry(agentID, -1, ledger.ReasonListingConsumption, nil).ForListing(unflagged)))

	// Listing flagged without a charge.
	uncharged := dbtest.CreateListing(t, db, agentID)
	_, err := db.Exec(db.Rebind(`UPDATE listings SET credit_consumed = ? WHERE id = ?`), true, uncharged)
	require.NoError(t, err)

	// Paid order without a purchase entry.
	pkgID := uuid.New()
	_, err = db.Exec(db.Rebind(`INSERT INTO credit_packages (id, slug, name, credits, price_cents, external_price_ref, active) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		pkgID, "solo", "Solo", 3, 1500, "", true)
	require.NoError(t, err)
	orderID := uuid.New()
	_, err = db.Exec(db.Rebind(`INSERT INTO credit_orders (id, agent_id, package_id, credits, price_cents, status, external_session_id, external_payment_ref, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		orderID, agentID, pkgID, 3, 1500, "paid", "cs_lost", "", time.Now().UTC())
	require.NoError(t, err)

	// Redemption row without its ledger grant.
	promoID := uuid.New()
	_, err = db.Exec(db.Rebind(`INSERT INTO promo_codes (id, code, credits, active, notes, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		promoID, "GHOST", 4, true, "", time.Now().UTC())
	require.NoError(t, err)
	_, err = db.Exec(db.Rebind(`INSERT INTO promo_redemptions (id, promo_code_id, agent_id, created_at) VALUES (?, ?, ?, ?)`),
		uuid.New(), promoID, agentID, time.Now().UTC())
	require.NoError(t, err)

	report, err := NewService(NewRepository(db)).Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Clean())

	require.Len(t, report.UnflaggedConsumptions, 1)
	assert.Equal(t, unflagged, report.UnflaggedConsumptions[0].ListingID)

	require.Len(t, report.UnchargedListings, 1)
	assert.Equal(t, uncharged, report.UnchargedListings[0].ListingID)

	require.Len(t, report.OrdersWithoutCredit, 1)
	assert.Equal(t, orderID, report.OrdersWithoutCredit[0].OrderID)
	assert.Equal(t, "cs_lost", report.OrdersWithoutCredit[0].SessionID)

	require.Len(t, report.PromoMismatches, 1)
	assert.Equal(t, "GHOST", report.PromoMismatches[0].Code)
	assert.Equal(t, 1, report.PromoMismatches[0].Redemptions)
	assert.Equal(t, 0, report.PromoMismatches[0].LedgerGrants)

	require.Len(t, report.NegativeBalances, 1)
	assert.Equal(t, agentID, report.NegativeBalances[0].AgentID)
	assert.Equal(t, -1, report.NegativeBalances[0].Balance)
}
