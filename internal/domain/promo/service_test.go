package promo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

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
		svc:    NewService(db, NewRepository(db), ledgerSvc),
	}
}

func intPtr(v int) *int { return &v }

func (f *fixture) create(t *testing.T, in CreateInput) *Code {
	t.Helper()
	c, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	return c
}

func (f *fixture) redemptions(t *testing.T, codeID uuid.UUID) int {
	return dbtest.Count(t, f.db, `SELECT COUNT(*) FROM promo_redemptions WHERE promo_code_id = ?`, codeID)
}

func TestRedeem_GrantsCredits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agentID := uuid.New()
	code := f.create(t, CreateInput{Code: "WELCOME3", Credits: 3})

	result, err := f.svc.Redeem(ctx, "WELCOME3", agentID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.CreditsAdded)
	assert.Equal(t, 3, result.NewBalance)

	balance, err := f.ledger.GetBalance(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
	assert.Equal(t, 1, f.redemptions(t, code.ID))

	entries, err := f.ledger.ListEntries(ctx, agentID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.ReasonPromo, entries[0].Reason)
	assert.Equal(t, "WELCOME3", entries[0].Metadata[ledger.MetaPromoCode])
}

func TestRedeem_NormalizesCode(t *testing.T) {
	f := newFixture(t)
	f.create(t, CreateInput{Code: " spring-24 ", Credits: 2})

	result, err := f.svc.Redeem(context.Background(), "  Spring-24\t", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "SPRING-24", result.Code)
	assert.Equal(t, 2, result.NewBalance)
}

func TestRedeem_PerAgentLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agentID := uuid.New()
	code := f.create(t, CreateInput{Code: "ONCE", Credits: 5, PerAgentLimit: intPtr(1)})

	_, err := f.svc.Redeem(ctx, "ONCE", agentID)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, "ONCE", agentID)
	assert.ErrorIs(t, err, ErrPerAgentLimitReached)
	assert.Equal(t, 1, f.redemptions(t, code.ID))

	balance, err := f.ledger.GetBalance(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)

	// Another agent is unaffected.
	_, err = f.svc.Redeem(ctx, "ONCE", uuid.New())
	assert.NoError(t, err)
}

func TestRedeem_MaxRedemptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, CreateInput{Code: "FIVE", Credits: 1, MaxRedemptions: intPtr(5)})

	for i := 0; i < 5; i++ {
		_, err := f.svc.Redeem(ctx, "FIVE", uuid.New())
		require.NoError(t, err)
	}

	_, err := f.svc.Redeem(ctx, "FIVE", uuid.New())
	assert.ErrorIs(t, err, ErrPromoExhausted)
	assert.Equal(t, 5, f.redemptions(t, code.ID))
}

func TestRedeem_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agentID := uuid.New()

	past := time.Now().Add(-time.Hour)
	f.create(t, CreateInput{Code: "OLD", Credits: 1, ExpiresAt: &past})
	off := f.create(t, CreateInput{Code: "PAUSED", Credits: 1})
	_, err := f.svc.SetActive(ctx, off.ID, false)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, "OLD", agentID)
	assert.ErrorIs(t, err, ErrPromoExpired)

	_, err = f.svc.Redeem(ctx, "paused", agentID)
	assert.ErrorIs(t, err, ErrPromoInactive)

	_, err = f.svc.Redeem(ctx, "NOPE", agentID)
	assert.ErrorIs(t, err, ErrPromoNotFound)

	_, err = f.svc.Redeem(ctx, "   ", agentID)
	assert.ErrorIs(t, err, ErrCodeRequired)

	balance, err := f.ledger.GetBalance(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
	assert.Equal(t, 0, dbtest.Count(t, f.db, `SELECT COUNT(*) FROM promo_redemptions`))
}

func TestRedeem_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expiresAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	f.create(t, CreateInput{Code: "EDGE", Credits: 1, ExpiresAt: &expiresAt})

	f.svc.now = func() time.Time { return expiresAt }
	_, err := f.svc.Redeem(ctx, "EDGE", uuid.New())
	assert.NoError(t, err)

	f.svc.now = func() time.Time { return expiresAt.Add(time.Second) }
	_, err = f.svc.Redeem(ctx, "EDGE", uuid.New())
	assert.ErrorIs(t, err, ErrPromoExpired)
}

func TestRedeem_ConcurrentSameAgent(t *testing.T) {
	f := newFixture(t)
	agentID := uuid.New()
	code := f.create(t, CreateInput{Code: "RACE", Credits: 4, PerAgentLimit: intPtr(1)})

	const workers = 6
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Redeem(context.Background(), "RACE", agentID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, ErrPerAgentLimitReached), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.redemptions(t, code.ID))

	balance, err := f.ledger.GetBalance(context.Background(), agentID)
	require.NoError(t, err)
	assert.Equal(t, 4, balance)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, CreateInput{Code: "ZERO", Credits: 0})
	assert.ErrorIs(t, err, ErrInvalidPromo)

	_, err = f.svc.Create(ctx, CreateInput{Code: "LIM", Credits: 1, MaxRedemptions: intPtr(0)})
	assert.ErrorIs(t, err, ErrInvalidPromo)

	f.create(t, CreateInput{Code: "DUP", Credits: 1})
	_, err = f.svc.Create(ctx, CreateInput{Code: "dup", Credits: 1})
	assert.ErrorIs(t, err, ErrPromoCodeExists)
}

func TestAdminQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, CreateInput{Code: "STATS", Credits: 2, MaxRedemptions: intPtr(10), Notes: "launch"})
	agentA, agentB := uuid.New(), uuid.New()

	_, err := f.svc.Redeem(ctx, "STATS", agentA)
	require.NoError(t, err)
	_, err = f.svc.Redeem(ctx, "STATS", agentB)
	require.NoError(t, err)

	stats, err := f.svc.Get(ctx, code.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Redemptions)
	assert.Equal(t, "launch", stats.Notes)
	require.NotNil(t, stats.MaxRedemptions)
	assert.Equal(t, 10, *stats.MaxRedemptions)

	list, err := f.svc.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Redemptions)

	reds, err := f.svc.ListRedemptions(ctx, code.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, reds, 2)

	_, err = f.svc.ListRedemptions(ctx, uuid.New(), 10, 0)
	assert.ErrorIs(t, err, ErrPromoNotFound)

	_, err = f.svc.SetActive(ctx, uuid.New(), false)
	assert.ErrorIs(t, err, ErrPromoNotFound)
}

// staleCounts reports zero prior redemptions on the first count, as a
// transaction that lost the race would have seen them.
type staleCounts struct {
	Repository
	stale atomic.Bool
}

func (r *staleCounts) CountRedemptionsTx(ctx context.Context, tx *sqlx.Tx, codeID, agentID uuid.UUID) (int, int, error) {
	if r.stale.CompareAndSwap(true, false) {
		return 0, 0, nil
	}
	return r.Repository.CountRedemptionsTx(ctx, tx, codeID, agentID)
}

func (f *fixture) staleService() (*Service, *staleCounts) {
	repo := &staleCounts{Repository: NewRepository(f.db)}
	repo.stale.Store(true)
	return NewService(f.db, repo, f.ledger), repo
}

func TestRedeem_LostRaceOnAgentLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	agentID := uuid.New()
	code := f.create(t, CreateInput{Code: "ONCE", Credits: 3, PerAgentLimit: intPtr(1)})

	_, err := f.svc.Redeem(ctx, "ONCE", agentID)
	require.NoError(t, err)

	svc, repo := f.staleService()
	conflicts := dbtest.Conflicts(t, "redeem_promo")

	_, err = svc.Redeem(ctx, "ONCE", agentID)
	assert.ErrorIs(t, err, ErrPerAgentLimitReached)
	assert.False(t, repo.stale.Load())
	assert.Equal(t, conflicts+1, dbtest.Conflicts(t, "redeem_promo"))
	assert.Equal(t, 1, f.redemptions(t, code.ID))

	balance, err := f.ledger.GetBalance(ctx, agentID)
	require.NoError(t, err)
	assert.Equal(t, 3, balance)
}

func TestRedeem_LostRaceOnGlobalLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.create(t, CreateInput{Code: "FIRST1", Credits: 2, MaxRedemptions: intPtr(1)})

	_, err := f.svc.Redeem(ctx, "FIRST1", uuid.New())
	require.NoError(t, err)

	svc, _ := f.staleService()
	conflicts := dbtest.Conflicts(t, "redeem_promo")
	late := uuid.New()

	_, err = svc.Redeem(ctx, "FIRST1", late)
	assert.ErrorIs(t, err, ErrPromoExhausted)
	assert.Equal(t, conflicts+1, dbtest.Conflicts(t, "redeem_promo"))
	assert.Equal(t, 1, f.redemptions(t, code.ID))

	balance, err := f.ledger.GetBalance(ctx, late)
	require.NoError(t, err)
	assert.Equal(t, 0, balance)
}
