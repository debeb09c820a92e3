package billing

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

// Service records paid checkout sessions and serves the package catalog.
type Service struct {
	db       *sqlx.DB
	repo     Repository
	ledger   *ledger.Service
	currency string
}

// NewService creates billing service
func NewService(db *sqlx.DB, repo Repository, ledgerService *ledger.Service, currency string) *Service {
	return &Service{db: db, repo: repo, ledger: ledgerService, currency: currency}
}

// Currency returns the ISO code package prices are expressed in.
func (s *Service) Currency() string {
	return s.currency
}

// HandlePaymentCompleted credits the agent for a paid session exactly once.
// Redelivered notifications return OutcomeDuplicate without writing.
func (s *Service) HandlePaymentCompleted(ctx context.Context, ev PaymentCompleted) (Outcome, error) {
	ev.SessionID = strings.TrimSpace(ev.SessionID)
	if ev.SessionID == "" {
		return "", ErrSessionRequired
	}

	log := logger.FromContext(ctx).With().
		Str("session_id", ev.SessionID).
		Str("agent_id", ev.AgentID.String()).
		Str("package_id", ev.PackageID.String()).
		Logger()

	var (
		outcome Outcome
		entry   *ledger.Entry
	)
	err := database.RetryOnConflict(ctx, "payment_completed", func() error {
		entry = nil
		return database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			var err error
			outcome, entry, err = s.completeTx(ctx, tx, ev)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, ErrUnknownPackage) {
			metrics.PaymentNotifications.WithLabelValues("unknown_package").Inc()
			log.Error().Msg("Payment for unknown package")
			return "", err
		}
		metrics.PaymentNotifications.WithLabelValues("error").Inc()
		if !errors.Is(err, ErrInternal) && !errors.Is(err, ledger.ErrInternal) {
			err = fmt.Errorf("%w: payment completed: %w", ErrInternal, err)
		}
		return "", err
	}

	metrics.PaymentNotifications.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeDuplicate {
		log.Info().Msg("Duplicate payment notification ignored")
		return outcome, nil
	}

	s.ledger.Committed(ctx, entry)
	log.Info().Int("credits", entry.Delta).Msg("Payment processed, credits granted")
	return outcome, nil
}

func (s *Service) completeTx(ctx context.Context, tx *sqlx.Tx, ev PaymentCompleted) (Outcome, *ledger.Entry, error) {
	existing, err := s.repo.GetOrderBySessionTx(ctx, tx, ev.SessionID)
	if err != nil {
		return "", nil, err
	}
	if existing != nil {
		return OutcomeDuplicate, nil, nil
	}

	pkg, err := s.repo.GetPackageTx(ctx, tx, ev.PackageID)
	if err != nil {
		return "", nil, err
	}

	order := &Order{
		ID:                 uuid.New(),
		AgentID:            ev.AgentID,
		PackageID:          pkg.ID,
		Credits:            pkg.Credits,
		PriceCents:         pkg.PriceCents,
		Status:             OrderStatusPaid,
		ExternalSessionID:  ev.SessionID,
		ExternalPaymentRef: ev.PaymentRef,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.repo.InsertOrderTx(ctx, tx, order); err != nil {
		return "", nil, err
	}

	entry := ledger.NewEntry(ev.AgentID, pkg.Credits, ledger.ReasonPurchase, ledger.Metadata{
		ledger.MetaSessionID: ev.SessionID,
		ledger.MetaPackageID: pkg.ID.String(),
	})
	if err := s.ledger.Repository().InsertTx(ctx, tx, entry); err != nil {
		return "", nil, err
	}

	return OutcomeProcessed, entry, nil
}

// ListPackages returns the catalog; activeOnly hides retired packages.
func (s *Service) ListPackages(ctx context.Context, activeOnly bool) ([]Package, error) {
	return s.repo.ListPackages(ctx, activeOnly)
}

// GetPackage returns the package with slug, or ErrUnknownPackage.
func (s *Service) GetPackage(ctx context.Context, slug string) (*Package, error) {
	return s.repo.GetPackageBySlug(ctx, strings.TrimSpace(slug))
}

// ListOrders returns the agent's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListOrdersByAgent(ctx, agentID, limit, offset)
}

// UpsertPackage creates or updates a package by slug.
func (s *Service) UpsertPackage(ctx context.Context, in PackageInput) (*Package, error) {
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	name := strings.TrimSpace(in.Name)
	if slug == "" || name == "" || in.Credits <= 0 || in.PriceCents < 0 {
		return nil, ErrInvalidPackage
	}

	p := &Package{
		ID:               uuid.New(),
		Slug:             slug,
		Name:             name,
		Credits:          in.Credits,
		PriceCents:       in.PriceCents,
		ExternalPriceRef: strings.TrimSpace(in.ExternalPriceRef),
		Active:           in.Active,
	}
	if err := s.repo.UpsertPackage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
