package common

import "errors"

var (
	ErrDuplicateOrderID = errors.New("duplicate order id")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidPrice     = errors.New("invalid price")

	ErrUnderlyingNotFound = errors.New("underlying not found")
	ErrExpirationNotFound = errors.New("expiration not found")
	ErrStrikeNotFound     = errors.New("strike not found")
	ErrNoStrikes          = errors.New("no strikes available")

	// ErrEngineFailure wraps errors surfaced by the matching engine. The
	// index never interprets the engine's internals.
	ErrEngineFailure = errors.New("engine failure")

	// ErrPricingFailure wraps errors surfaced by the pricing collaborator.
	ErrPricingFailure = errors.New("pricing failure")
)
