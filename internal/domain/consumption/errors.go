package consumption

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrListingNotFound     = errors.New("listing not found")
	ErrInternal            = errors.New("internal error")
)
