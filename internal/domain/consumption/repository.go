package consumption

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/listingkit/credits-api/internal/pkg/database"
)

// ListingRepository reads and flags listings inside a caller's transaction.
type ListingRepository interface {
	GetTx(ctx context.Context, tx *sqlx.Tx, listingID uuid.UUID) (*Listing, error)
	MarkConsumedTx(ctx context.Context, tx *sqlx.Tx, listingID uuid.UUID) error
}

type listingRepository struct{}

// NewListingRepository creates the SQL listing repository.
func NewListingRepository() ListingRepository {
	return &listingRepository{}
}

func (r *listingRepository) GetTx(ctx context.Context, tx *sqlx.Tx, listingID uuid.UUID) (*Listing, error) {
	var l Listing
	err := tx.GetContext(ctx, &l, tx.Rebind(`
		SELECT id, agent_id, credit_consumed, created_at
		FROM listings
		WHERE id = ?
	`), listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get listing: %w", ErrInternal, err)
	}
	return &l, nil
}

// MarkConsumedTx sets the flag only if it is still false. Zero affected rows
// means a concurrent writer got there first.
func (r *listingRepository) MarkConsumedTx(ctx context.Context, tx *sqlx.Tx, listingID uuid.UUID) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE listings SET credit_consumed = ? WHERE id = ? AND credit_consumed = ?
	`), true, listingID, false)
	if err != nil {
		return fmt.Errorf("%w: flag listing: %w", ErrInternal, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: flag listing rows: %w", ErrInternal, err)
	}
	if n == 0 {
		return errFlagRace
	}
	return nil
}

var errFlagRace = fmt.Errorf("%w: listing flag already set", database.ErrConflict)
