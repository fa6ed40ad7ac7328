package bank

import (
	"errors"
)

// Sentinel errors for banking operations.
var (
	// ErrAccountNotFound indicates that no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidTransition indicates a review status change that is not
	// allowed from the record's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
