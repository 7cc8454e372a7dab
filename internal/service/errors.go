package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")

	ErrEmptyMessage       = errors.New("empty message")
	ErrMessageTooLong     = errors.New("message too long")
	ErrInvalidMessageType = errors.New("invalid message type")

	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrUnauthorized covers unauthenticated callers and sender/recipient/conversation mismatches.
	ErrUnauthorized           = errors.New("unauthorized")
	ErrConversationNotFound   = errors.New("conversation not found")
	ErrDuplicateConversation  = errors.New("duplicate conversation")
	ErrLedgerSettlementFailed = errors.New("ledger settlement failed")
	// ErrTransient is retryable: the store was unreachable or the call ran out of time.
	ErrTransient = errors.New("transient failure")

	ErrInvalidRole   = errors.New("invalid role")
	ErrProfileExists = errors.New("profile already exists")
	ErrInvalidAmount = errors.New("amount must be positive")
)

var domainErrors = []error{
	ErrNotFound,
	ErrEmptyMessage,
	ErrMessageTooLong,
	ErrInvalidMessageType,
	ErrInsufficientCredits,
	ErrUnauthorized,
	ErrConversationNotFound,
	ErrDuplicateConversation,
	ErrLedgerSettlementFailed,
	ErrTransient,
	ErrInvalidRole,
	ErrProfileExists,
	ErrInvalidAmount,
}

// asTransient leaves domain errors as they are. Store failures, deadlines and
// cancellations become ErrTransient.
func asTransient(err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
