package repository

import "errors"

var (
	ErrDBNotReady = errors.New("database not initialized")
	// ErrDuplicate is returned when an insert hits a unique constraint and inserted nothing.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInsufficientFunds is returned when a conditional debit matched no wallet row.
	ErrInsufficientFunds = errors.New("insufficient funds")
)
