package promo

import "errors"

var (
	ErrCodeRequired         = errors.New("promo code is required")
	ErrPromoNotFound        = errors.New("promo code not found")
	ErrPromoInactive        = errors.New("promo code is inactive")
	ErrPromoExpired         = errors.New("promo code has expired")
	ErrPromoExhausted       = errors.New("promo code has no redemptions left")
	ErrPerAgentLimitReached = errors.New("promo code already redeemed the maximum number of times")

	// Admin errors
	ErrPromoCodeExists = errors.New("promo code already exists")
	ErrInvalidPromo    = errors.New("invalid promo code definition")

	ErrInternal = errors.New("internal error")
)
