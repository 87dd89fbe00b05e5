package service

import "errors"

// Domain errors returned by Service operations. The HTTP layer maps
// them onto response status codes.
var (
	// ErrValidation marks malformed or missing caller input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks an operation that lost against game state,
	// such as a duplicate submission or a second reveal.
	ErrConflict = errors.New("conflict")

	// ErrInsufficientFunds marks a bid above the team's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
