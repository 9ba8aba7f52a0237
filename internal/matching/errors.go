package matching

import "errors"

// Sentinel errors implementing the error taxonomy of spec §7. Business
// outcomes (IOC cancel, Market partial) are not modeled as errors — they
// are normal terminal OrderStatus values. These sentinels cover the cases
// that prevent dispatch entirely; an FOK order rejected by the pre-check
// gets both a Rejected status and ErrFillImpossible.
var (
	// ErrValidation is returned when an order fails admission (empty
	// symbol, non-positive quantity, missing/non-positive price when the
	// type requires one).
	ErrValidation = errors.New("matching: order failed validation")

	// ErrUnknownSymbol is returned by Cancel/Lookup for a symbol with no
	// book. Not fatal.
	ErrUnknownSymbol = errors.New("matching: unknown symbol")

	// ErrOrderNotFound is returned by Lookup for an unknown order id. Not
	// fatal. Cancel reports an unknown id as false with a nil error.
	ErrOrderNotFound = errors.New("matching: order not found")

	// ErrFillImpossible is returned when an FOK order's pre-check
	// determines the book cannot fill it in full. The order is rejected;
	// no mutation occurs.
	ErrFillImpossible = errors.New("matching: fill-or-kill order cannot be filled in full")

	// ErrDuplicateOrderID is returned when a caller submits an order_id
	// already present in a book's id index. Spec §4.3 treats duplicate
	// submission as a caller error; the engine rejects rather than
	// silently deduplicating.
	ErrDuplicateOrderID = errors.New("matching: order id already exists")
)
