package ledger

import "errors"

var (
	// ErrNotFound means the referenced finance or payment does not exist.
	ErrNotFound = errors.New("finance not found")
	// ErrInvalidAmount means an amount was missing, zero or negative.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrExceedsOutstanding means a payment was larger than what is owed.
	ErrExceedsOutstanding = errors.New("amount exceeds outstanding")
	// ErrBelowMinimum means an interest payment was below the 1-unit floor.
	ErrBelowMinimum = errors.New("interest amount must be at least 1")
	// ErrNotCleared means a delete was attempted while principal remains
	// outstanding.
	ErrNotCleared = errors.New("finance still has outstanding principal")
	// ErrConflictingInterest means an edit supplied both an interest rate and
	// a flat monthly amount.
	ErrConflictingInterest = errors.New("use either interest rate or interest per month, not both")
	// ErrMissingInterest means a create supplied neither interest form.
	ErrMissingInterest = errors.New("provide interest per month or interest rate")
	// ErrValidation wraps malformed input rejections.
	ErrValidation = errors.New("validation failed")
)
