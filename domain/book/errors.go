package book

import "errors"

var (
	// ErrInvalidOrder rejects malformed price, quantity, or side input.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrDuplicateOrder rejects an order id that is already resting.
	ErrDuplicateOrder = errors.New("duplicate order id")

	// ErrOrderNotFound means the target order is absent: already filled,
	// already cancelled, or never existed.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotOwner rejects a cancel from a user that did not submit the order.
	ErrNotOwner = errors.New("not order owner")

	// ErrUnknownSymbol is returned for queries on symbols with no activity.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrStaleUpdate marks a peer snapshot with a non-increasing sequence
	// number. Dropped, never surfaced to clients.
	ErrStaleUpdate = errors.New("stale order book update")
)
