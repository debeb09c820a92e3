package billing

import "errors"

var (
	ErrUnknownPackage  = errors.New("unknown credit package")
	ErrSessionRequired = errors.New("checkout session id is required")
	ErrInvalidPackage  = errors.New("invalid credit package")
	ErrInternal        = errors.New("internal error")
)
