package promo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/listingkit/credits-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

const codeColumns = `id, code, credits, max_redemptions, per_agent_limit, expires_at, active, notes, created_at`

// Repository defines promo data access
type Repository interface {
	Create(ctx context.Context, c *Code) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	GetStats(ctx context.Context, id uuid.UUID) (*CodeStats, error)
	List(ctx context.Context, limit, offset int) ([]CodeStats, error)
	ListRedemptions(ctx context.Context, codeID uuid.UUID, limit, offset int) ([]Redemption, error)

	GetByCodeTx(ctx context.Context, tx *sqlx.Tx, code string) (*Code, error)
	CountRedemptionsTx(ctx context.Context, tx *sqlx.Tx, codeID, agentID uuid.UUID) (total, byAgent int, err error)
	InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, r *Redemption) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates promo repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, c *Code) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO promo_codes (`+codeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), c.ID, c.Code, c.Credits, c.MaxRedemptions, c.PerAgentLimit, c.ExpiresAt, c.Active, c.Notes, c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrPromoCodeExists
		}
		return fmt.Errorf("%w: insert promo code: %w", ErrInternal, err)
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE promo_codes SET active = ? WHERE id = ?`), active, id)
	if err != nil {
		return fmt.Errorf("%w: update promo code: %w", ErrInternal, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update promo code: %w", ErrInternal, err)
	}
	if n == 0 {
		return ErrPromoNotFound
	}
	return nil
}

const statsQuery = `
	SELECT p.id, p.code, p.credits, p.max_redemptions, p.per_agent_limit, p.expires_at,
	       p.active, p.notes, p.created_at,
	       (SELECT COUNT(*) FROM promo_redemptions r WHERE r.promo_code_id = p.id) AS redemptions
	FROM promo_codes p
`

func (r *repository) GetStats(ctx context.Context, id uuid.UUID) (*CodeStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c CodeStats
	err := r.db.GetContext(ctx, &c, r.db.Rebind(statsQuery+` WHERE p.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get promo code: %w", ErrInternal, err)
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]CodeStats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	codes := make([]CodeStats, 0)
	err := r.db.SelectContext(ctx, &codes, r.db.Rebind(statsQuery+`
		ORDER BY p.created_at DESC, p.code
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list promo codes: %w", ErrInternal, err)
	}
	return codes, nil
}

func (r *repository) ListRedemptions(ctx context.Context, codeID uuid.UUID, limit, offset int) ([]Redemption, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	redemptions := make([]Redemption, 0)
	err := r.db.SelectContext(ctx, &redemptions, r.db.Rebind(`
		SELECT id, promo_code_id, agent_id, slot, agent_slot, created_at
		FROM promo_redemptions
		WHERE promo_code_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`), codeID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list redemptions: %w", ErrInternal, err)
	}
	return redemptions, nil
}

func (r *repository) GetByCodeTx(ctx context.Context, tx *sqlx.Tx, code string) (*Code, error) {
	var c Code
	err := tx.GetContext(ctx, &c, tx.Rebind(`SELECT `+codeColumns+` FROM promo_codes WHERE code = ?`), code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get promo code: %w", ErrInternal, err)
	}
	return &c, nil
}

func (r *repository) CountRedemptionsTx(ctx context.Context, tx *sqlx.Tx, codeID, agentID uuid.UUID) (int, int, error) {
	var counts struct {
		Total   int `db:"total"`
		ByAgent int `db:"by_agent"`
	}
	err := tx.GetContext(ctx, &counts, tx.Rebind(`
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN agent_id = ? THEN 1 ELSE 0 END), 0) AS by_agent
		FROM promo_redemptions
		WHERE promo_code_id = ?
	`), agentID, codeID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: count redemptions: %w", ErrInternal, err)
	}
	return counts.Total, counts.ByAgent, nil
}

func (r *repository) InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, red *Redemption) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO promo_redemptions (id, promo_code_id, agent_id, slot, agent_slot, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), red.ID, red.PromoCodeID, red.AgentID, red.Slot, red.AgentSlot, red.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert redemption: %w", ErrInternal, err)
	}
	return nil
}
