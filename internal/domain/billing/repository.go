package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

const (
	packageColumns = `id, slug, name, credits, price_cents, external_price_ref, active`
	orderColumns   = `id, agent_id, package_id, credits, price_cents, status, external_session_id, external_payment_ref, created_at`
)

// Repository defines billing data access
type Repository interface {
	ListPackages(ctx context.Context, activeOnly bool) ([]Package, error)
	GetPackageBySlug(ctx context.Context, slug string) (*Package, error)
	UpsertPackage(ctx context.Context, p *Package) error
	ListOrdersByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]Order, error)

	GetPackageTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Package, error)
	GetOrderBySessionTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (*Order, error)
	InsertOrderTx(ctx context.Context, tx *sqlx.Tx, o *Order) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates billing repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListPackages(ctx context.Context, activeOnly bool) ([]Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + packageColumns + ` FROM credit_packages`
	var args []interface{}
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY credits, slug`

	packages := make([]Package, 0)
	if err := r.db.SelectContext(ctx, &packages, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: list packages: %w", ErrInternal, err)
	}
	return packages, nil
}

func (r *repository) GetPackageBySlug(ctx context.Context, slug string) (*Package, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Package
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`SELECT `+packageColumns+` FROM credit_packages WHERE slug = ?`), slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownPackage
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get package: %w", ErrInternal, err)
	}
	return &p, nil
}

// UpsertPackage inserts p or updates the package with the same slug. On
// update p.ID is replaced by the stored id.
func (r *repository) UpsertPackage(ctx context.Context, p *Package) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.GetContext(ctx, &p.ID, r.db.Rebind(`
		INSERT INTO credit_packages (`+packageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET
			name = excluded.name,
			credits = excluded.credits,
			price_cents = excluded.price_cents,
			external_price_ref = excluded.external_price_ref,
			active = excluded.active
		RETURNING id
	`), p.ID, p.Slug, p.Name, p.Credits, p.PriceCents, p.ExternalPriceRef, p.Active)
	if err != nil {
		return fmt.Errorf("%w: upsert package: %w", ErrInternal, err)
	}
	return nil
}

func (r *repository) ListOrdersByAgent(ctx context.Context, agentID uuid.UUID, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	orders := make([]Order, 0)
	err := r.db.SelectContext(ctx, &orders, r.db.Rebind(`
		SELECT `+orderColumns+`
		FROM credit_orders
		WHERE agent_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`), agentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list orders: %w", ErrInternal, err)
	}
	return orders, nil
}

func (r *repository) GetPackageTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Package, error) {
	var p Package
	err := tx.GetContext(ctx, &p, tx.Rebind(`SELECT `+packageColumns+` FROM credit_packages WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnknownPackage
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get package: %w", ErrInternal, err)
	}
	return &p, nil
}

// GetOrderBySessionTx returns nil, nil when no order exists for sessionID.
func (r *repository) GetOrderBySessionTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (*Order, error) {
	var o Order
	err := tx.GetContext(ctx, &o, tx.Rebind(`SELECT `+orderColumns+` FROM credit_orders WHERE external_session_id = ?`), sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %w", ErrInternal, err)
	}
	return &o, nil
}

func (r *repository) InsertOrderTx(ctx context.Context, tx *sqlx.Tx, o *Order) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO credit_orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), o.ID, o.AgentID, o.PackageID, o.Credits, o.PriceCents, o.Status, o.ExternalSessionID, o.ExternalPaymentRef, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert order: %w", ErrInternal, err)
	}
	return nil
}
