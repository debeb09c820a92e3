package billing

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/pkg/database/dbtest"
)

type fixture struct {
	db     *sqlx.DB
	ledger *ledger.Service
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	ledgerSvc := ledger.NewService(ledger.NewRepository(db), nil)
	return &fixture{
		db:     db,
		ledger: ledgerSvc,
		svc:    NewService(db, NewRepository(db), ledgerSvc, "USD"),
	}
}

func (f *fixture) pack(t *testing.T, slug string, credits int, cents int64) *Package {
	t.Helper()
	p, err := f.svc.UpsertPackage(context.Background(), PackageInput{
		Slug: slug, Name: slug, Credits: credits, PriceCents: cents, Active: true,
	})
	require.NoError(t, err)
	return p
}

func TestHandlePaymentCompleted_ProcessesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agentID := uuid.New()
	pkg := f.pack(t, "starter", 10, 4900)

	ev := PaymentCompleted{SessionID: "cs_test_1", AgentID: agentID, PackageID: pkg.ID, PaymentRef: "pi_1"}

	outcome, err := f.svc.HandlePaymentCompleted(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	outcome, err = f.svc.HandlePaymentCompleted(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM credit_orders WHERE external_session_id = ?`, "cs_test_1"))
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM agent_credit_ledger WHERE agent_id = ? AND reason = 'purchase'`, agentID))

	balance, err := f.ledger.GetBalance(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	entries, err := f.ledger.ListEntries(ctx, agentID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cs_test_1", entries[0].Metadata[ledger.MetaSessionID])
	assert.Equal(t, pkg.ID.String(), entries[0].Metadata[ledger.MetaPackageID])

	orders, err := f.svc.ListOrders(ctx, agentID, 10, 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, OrderStatusPaid, orders[0].Status)
	assert.Equal(t, int64(4900), orders[0].PriceCents)
	assert.Equal(t, "pi_1", orders[0].ExternalPaymentRef)
}

func TestHandlePaymentCompleted_UnknownPackage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agentID := uuid.New()

	_, err := f.svc.HandlePaymentCompleted(ctx, PaymentCompleted{
		SessionID: "cs_unknown", AgentID: agentID, PackageID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrUnknownPackage)
	assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM credit_orders`))

	balance, err := f.ledger.GetBalance(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}

func TestHandlePaymentCompleted_RequiresSession(t *testing.T) {
	f := newFixture(t)
	pkg := f.pack(t, "starter", 10, 4900)

	_, err := f.svc.HandlePaymentCompleted(context.Background(), PaymentCompleted{
		SessionID: "  ", AgentID: uuid.New(), PackageID: pkg.ID,
	})
	assert.ErrorIs(t, err, ErrSessionRequired)
}

func TestHandlePaymentCompleted_ConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	agentID := uuid.New()
	pkg := f.pack(t, "pro", 25, 9900)
	ev := PaymentCompleted{SessionID: "cs_race", AgentID: agentID, PackageID: pkg.ID}

	const deliveries = 6
	outcomes := make([]Outcome, deliveries)
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = f.svc.HandlePaymentCompleted(context.Background(), ev)
		}(i)
	}
	wg.Wait()

	processed := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == OutcomeProcessed {
			processed++
		}
	}
	assert.Equal(t, 1, processed)

	balance, err := f.ledger.GetBalance(context.Background(), agentID)
	require.NoError(t, err)
	assert.Equal(t, 25, balance)
}

func TestUpsertPackage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.pack(t, "Team", 50, 19900)
	assert.Equal(t, "team", first.Slug)

	updated, err := f.svc.UpsertPackage(ctx, PackageInput{
		Slug: "team", Name: "Team plan", Credits: 60, PriceCents: 19900, Active: false,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)

	all, err := f.svc.ListPackages(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 60, all[0].Credits)
	assert.Equal(t, "Team plan", all[0].Name)

	active, err := f.svc.ListPackages(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = f.svc.UpsertPackage(ctx, PackageInput{Slug: "bad", Name: "bad", Credits: 0})
	assert.ErrorIs(t, err, ErrInvalidPackage)
}

func TestPackagePrice(t *testing.T) {
	p := &Package{PriceCents: 4900}
	assert.Equal(t, "$49.00", p.Price("USD").Display())
}

// staleOrders misses the existing order on the first lookup, as a
// transaction that lost the race would have.
type staleOrders struct {
	Repository
	stale atomic.Bool
}

func (r *staleOrders) GetOrderBySessionTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (*Order, error) {
	if r.stale.CompareAndSwap(true, false) {
		return nil, nil
	}
	return r.Repository.GetOrderBySessionTx(ctx, tx, sessionID)
}

func TestHandlePaymentCompleted_LostRaceReportsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agentID := uuid.New()
	pkg := f.pack(t, "team", 40, 14900)
	ev := PaymentCompleted{SessionID: "cs_late", AgentID: agentID, PackageID: pkg.ID, PaymentRef: "pi_late"}

	outcome, err := f.svc.HandlePaymentCompleted(ctx, ev)
	require.NoError(t, err)
	require.Equal(t, OutcomeProcessed, outcome)

	repo := &staleOrders{Repository: NewRepository(f.db)}
	repo.stale.Store(true)
	svc := NewService(f.db, repo, f.ledger, "USD")
	conflicts := dbtest.Conflicts(t, "payment_completed")

	outcome, err = svc.HandlePaymentCompleted(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.False(t, repo.stale.Load())
	assert.Equal(t, conflicts+1, dbtest.Conflicts(t, "payment_completed"))
	assert.Equal(t, 1, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM credit_orders WHERE external_session_id = ?`, "cs_late"))

	balance, err := f.ledger.GetBalance(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 40, balance)
}
