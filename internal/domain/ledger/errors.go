package ledger

import "errors"

var (
	// ErrInvalidDelta is returned for a zero delta
	ErrInvalidDelta = errors.New("invalid delta: must not be zero")

	// ErrInvalidReason is returned for a reason outside the closed set
	ErrInvalidReason = errors.New("invalid ledger reason")

	// ErrReasonRequired is returned when a manual adjustment has no explanation
	ErrReasonRequired = errors.New("adjustment reason is required")

	ErrInternal = errors.New("internal error")
)
