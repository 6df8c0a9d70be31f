package service

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/kiwari-pos/floor/internal/database"
)

// Errors returned by the floor services. Handlers map them to HTTP status codes.
var (
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrTableAlreadyHasOpenOrder = errors.New("table already has an open order")
	ErrOrderNotMutable          = errors.New("order is settled and can no longer be modified")
	ErrOrderAlreadySettled      = errors.New("order is already settled")
	ErrInvalidAmount            = errors.New("amount must be > 0 and <= remaining balance, tip must be >= 0")
	ErrDuplicatePayment         = errors.New("payment with this idempotency key was already recorded")
	ErrConcurrentModification   = errors.New("resource was modified concurrently, retry with a fresh snapshot")
	ErrTotalBelowPaid           = errors.New("order total cannot drop below the amount already paid")

	ErrTableNotFound   = errors.New("table not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrItemNotFound    = errors.New("order item not found")
	ErrProductNotFound = errors.New("product not found in outlet")

	ErrInvalidPax             = errors.New("pax must be >= 1")
	ErrInvalidCapacity        = errors.New("capacity must be >= 1")
	ErrInvalidTableName       = errors.New("table name is required and must be at most 50 characters")
	ErrInvalidStatusFilter    = errors.New("invalid table status filter")
	ErrInvalidQuantity        = errors.New("quantity must be between 1 and 2147483647")
	ErrInvalidQuantityDelta   = errors.New("quantity delta must not be 0")
	ErrInvalidPaymentMethod   = errors.New("invalid payment_method")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required and must be at most 100 characters")
	ErrInvalidGuestLabel      = errors.New("guest label must be at most 50 characters")
	ErrInvalidSplit           = errors.New("invalid split: mode must be even (with 1 <= n <= 100, at most one payer per minor unit owed) or guest")
	ErrNothingToSubmit        = errors.New("current round has no items to submit")
)

// Widths of the varchar columns that take caller input.
const (
	maxTableNameLen      = 50
	maxGuestLabelLen     = 50
	maxIdempotencyKeyLen = 100
)

func tooLong(s string, limit int) bool {
	return utf8.RuneCountInString(s) > limit
}

// TransitionError reports a table state machine violation. It matches
// ErrInvalidStateTransition under errors.Is.
type TransitionError struct {
	Action string
	From   database.TableStatus
	To     database.TableStatus
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("invalid state transition: cannot %s table in %s", e.Action, e.From)
	}
	return fmt.Sprintf("invalid state transition: cannot %s table from %s to %s", e.Action, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
