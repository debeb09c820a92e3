package promo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/listingkit/credits-api/internal/domain/ledger"
	"github.com/listingkit/credits-api/internal/pkg/database"
	"github.com/listingkit/credits-api/internal/pkg/logger"
	"github.com/listingkit/credits-api/internal/pkg/metrics"
)

// Service redeems and administers promo codes.
type Service struct {
	db     *sqlx.DB
	repo   Repository
	ledger *ledger.Service
	now    func() time.Time
}

// NewService creates promo service
func NewService(db *sqlx.DB, repo Repository, ledgerService *ledger.Service) *Service {
	return &Service{
		db:     db,
		repo:   repo,
		ledger: ledgerService,
		now:    time.Now,
	}
}

// Redeem grants the code's credits to agentID. Expected rejections are
// returned as the package's sentinel errors and leave no trace.
func (s *Service) Redeem(ctx context.Context, rawCode string, agentID uuid.UUID) (*RedeemResult, error) {
	code := NormalizeCode(rawCode)
	if code == "" {
		return nil, ErrCodeRequired
	}

	var (
		result *RedeemResult
		entry  *ledger.Entry
	)
	err := database.RetryOnConflict(ctx, "redeem_promo", func() error {
		return database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			var err error
			result, entry, err = s.redeemTx(ctx, tx, code, agentID)
			return err
		})
	})

	log := logger.FromContext(ctx)
	if err != nil {
		outcome := redeemOutcome(err)
		metrics.Redemptions.WithLabelValues(outcome).Inc()
		if outcome == "error" {
			if !errors.Is(err, ErrInternal) && !errors.Is(err, ledger.ErrInternal) {
				err = fmt.Errorf("%w: redeem: %w", ErrInternal, err)
			}
			return nil, err
		}
		log.Info().Str("code", code).Str("agent_id", agentID.String()).Str("outcome", outcome).Msg("Promo redemption rejected")
		return nil, err
	}

	metrics.Redemptions.WithLabelValues("redeemed").Inc()
	s.ledger.Committed(ctx, entry)
	log.Info().
		Str("code", code).
		Str("agent_id", agentID.String()).
		Int("credits", result.CreditsAdded).
		Msg("Promo code redeemed")

	return result, nil
}

func (s *Service) redeemTx(ctx context.Context, tx *sqlx.Tx, code string, agentID uuid.UUID) (*RedeemResult, *ledger.Entry, error) {
	promo, err := s.repo.GetByCodeTx(ctx, tx, code)
	if err != nil {
		return nil, nil, err
	}
	if !promo.Active {
		return nil, nil, ErrPromoInactive
	}

	now := s.now().UTC()
	if promo.ExpiredAt(now) {
		return nil, nil, ErrPromoExpired
	}

	total, byAgent, err := s.repo.CountRedemptionsTx(ctx, tx, promo.ID, agentID)
	if err != nil {
		return nil, nil, err
	}

	redemption := &Redemption{
		ID:          uuid.New(),
		PromoCodeID: promo.ID,
		AgentID:     agentID,
		CreatedAt:   now,
	}
	if promo.MaxRedemptions != nil {
		if total >= *promo.MaxRedemptions {
			return nil, nil, ErrPromoExhausted
		}
		slot := total + 1
		redemption.Slot = &slot
	}
	if promo.PerAgentLimit != nil {
		if byAgent >= *promo.PerAgentLimit {
			return nil, nil, ErrPerAgentLimitReached
		}
		agentSlot := byAgent + 1
		redemption.AgentSlot = &agentSlot
	}

	repo := s.ledger.Repository()
	entry := ledger.NewEntry(agentID, promo.Credits, ledger.ReasonPromo, ledger.Metadata{
		ledger.MetaPromoCode: promo.Code,
	})
	if err := repo.InsertTx(ctx, tx, entry); err != nil {
		return nil, nil, err
	}
	if err := s.repo.InsertRedemptionTx(ctx, tx, redemption); err != nil {
		return nil, nil, err
	}

	balance, err := repo.BalanceTx(ctx, tx, agentID)
	if err != nil {
		return nil, nil, err
	}

	return &RedeemResult{
		Code:         promo.Code,
		CreditsAdded: promo.Credits,
		NewBalance:   balance,
	}, entry, nil
}

func redeemOutcome(err error) string {
	switch {
	case errors.Is(err, ErrPromoNotFound):
		return "not_found"
	case errors.Is(err, ErrPromoInactive):
		return "inactive"
	case errors.Is(err, ErrPromoExpired):
		return "expired"
	case errors.Is(err, ErrPromoExhausted):
		return "exhausted"
	case errors.Is(err, ErrPerAgentLimitReached):
		return "agent_limit"
	}
	return "error"
}

// Create registers a new code. The code is stored normalized.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Code, error) {
	code := NormalizeCode(in.Code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if in.Credits <= 0 ||
		(in.MaxRedemptions != nil && *in.MaxRedemptions <= 0) ||
		(in.PerAgentLimit != nil && *in.PerAgentLimit <= 0) {
		return nil, ErrInvalidPromo
	}

	c := &Code{
		ID:             uuid.New(),
		Code:           code,
		Credits:        in.Credits,
		MaxRedemptions: in.MaxRedemptions,
		PerAgentLimit:  in.PerAgentLimit,
		Active:         true,
		Notes:          strings.TrimSpace(in.Notes),
		CreatedAt:      s.now().UTC(),
	}
	if in.ExpiresAt != nil {
		expiresAt := in.ExpiresAt.UTC()
		c.ExpiresAt = &expiresAt
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("code", c.Code).
		Int("credits", c.Credits).
		Msg("Promo code created")

	return c, nil
}

// SetActive toggles a code and returns its updated state.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*CodeStats, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	return s.repo.GetStats(ctx, id)
}

// Get returns a code with its redemption count.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*CodeStats, error) {
	return s.repo.GetStats(ctx, id)
}

// List returns codes newest first
func (s *Service) List(ctx context.Context, limit, offset int) ([]CodeStats, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset)
}

// ListRedemptions returns the redemptions of a code, newest first.
func (s *Service) ListRedemptions(ctx context.Context, codeID uuid.UUID, limit, offset int) ([]Redemption, error) {
	if _, err := s.repo.GetStats(ctx, codeID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListRedemptions(ctx, codeID, limit, offset)
}
