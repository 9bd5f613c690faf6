package repository

import "errors"

var (
	ErrNotFound = errors.New("repository: not found")
	// ErrActiveOrderExists is returned when an insert collides with the
	// one-active-payable-order-per-customer index.
	ErrActiveOrderExists = errors.New("repository: customer already has an active payable order")
	ErrDuplicateKey      = errors.New("repository: duplicate key")
)
