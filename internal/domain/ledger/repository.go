package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

const entryColumns = `id, agent_id, delta, reason, listing_id, metadata, created_at`

// Repository is the append-only ledger store. There is no update or delete.
type Repository interface {
	Insert(ctx context.Context, e *Entry) error
	InsertTx(ctx context.Context, tx *sqlx.Tx, e *Entry) error
	Balance(ctx context.Context, agentID uuid.UUID) (int, error)
	BalanceTx(ctx context.Context, tx *sqlx.Tx, agentID uuid.UUID) (int, error)
	Totals(ctx context.Context, agentID uuid.UUID) (map[Reason]int, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID, pagination Pagination) ([]Entry, error)
	Search(ctx context.Context, filters SearchFilters) ([]Entry, error)
}

// LedgerRepository stores entries in agent_credit_ledger.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Insert(ctx context.Context, e *Entry) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrInternal, err)
	}
	defer tx.Rollback()

	if err := r.InsertTx(ctx2, tx, e); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", ErrInternal, err)
	}
	return nil
}

// InsertTx writes e within an external transaction. The caller commits.
func (r *LedgerRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, e *Entry) error {
	if e.Delta == 0 {
		return ErrInvalidDelta
	}
	if !e.Reason.Valid() {
		return ErrInvalidReason
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}

	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO agent_credit_ledger (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.AgentID, e.Delta, string(e.Reason), e.ListingID, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert ledger entry: %w", ErrInternal, err)
	}

	return nil
}

func (r *LedgerRepository) Balance(ctx context.Context, agentID uuid.UUID) (int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return balance(ctx2, r.db, agentID)
}

// BalanceTx sums the agent's deltas inside tx so the result is part of the
// transaction's read set.
func (r *LedgerRepository) BalanceTx(ctx context.Context, tx *sqlx.Tx, agentID uuid.UUID) (int, error) {
	return balance(ctx, tx, agentID)
}

type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func balance(ctx context.Context, q queryer, agentID uuid.UUID) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, q, &total, q.Rebind(`
		SELECT COALESCE(SUM(delta), 0) FROM agent_credit_ledger WHERE agent_id = ?
	`), agentID)
	if err != nil {
		return 0, fmt.Errorf("%w: sum ledger: %w", ErrInternal, err)
	}
	return total, nil
}

func (r *LedgerRepository) Totals(ctx context.Context, agentID uuid.UUID) (map[Reason]int, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rows []struct {
		Reason Reason `db:"reason"`
		Total  int    `db:"total"`
	}
	err := r.db.SelectContext(ctx2, &rows, r.db.Rebind(`
		SELECT reason, COALESCE(SUM(delta), 0) AS total
		FROM agent_credit_ledger
		WHERE agent_id = ?
		GROUP BY reason
	`), agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: ledger totals: %w", ErrInternal, err)
	}

	totals := make(map[Reason]int, len(rows))
	for _, row := range rows {
		totals[row.Reason] = row.Total
	}
	return totals, nil
}

func (r *LedgerRepository) ListByAgent(ctx context.Context, agentID uuid.UUID, pagination Pagination) ([]Entry, error) {
	return r.Search(ctx, SearchFilters{
		AgentID: &agentID,
		Limit:   pagination.Limit,
		Offset:  pagination.Offset,
	})
}

func (r *LedgerRepository) Search(ctx context.Context, filters SearchFilters) ([]Entry, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		where []string
		args  []interface{}
	)
	if filters.AgentID != nil {
		where = append(where, "agent_id = ?")
		args = append(args, *filters.AgentID)
	}
	if filters.Reason != nil && *filters.Reason != "" {
		where = append(where, "reason = ?")
		args = append(args, string(*filters.Reason))
	}
	if filters.ListingID != nil {
		where = append(where, "listing_id = ?")
		args = append(args, *filters.ListingID)
	}
	if filters.DateFrom != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filters.DateFrom.UTC())
	}
	if filters.DateTo != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filters.DateTo.UTC())
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + entryColumns + ` FROM agent_credit_ledger`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, filters.Offset)

	entries := make([]Entry, 0)
	if err := r.db.SelectContext(ctx2, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%w: search ledger: %w", ErrInternal, err)
	}

	return entries, nil
}
