package engine

import "hydra/domain/book"

// EventKind discriminates engine events on the outbound queue.
type EventKind uint8

const (
	// EventBookChanged carries a full post-match snapshot. Emitted only on
	// submits that produced fills.
	EventBookChanged EventKind = iota
	// EventTopOfBook carries a best bid/ask advisory. Emitted whenever the
	// top of a symbol's book moves, whatever the cause.
	EventTopOfBook
)

// Event is the unit handed to the synchronizer. Emission is
// fire-and-forget: the matching path never blocks on a slow consumer.
type Event struct {
	Kind   EventKind
	Symbol string

	// Book is set for EventBookChanged.
	Book book.Snapshot

	// BestBid/BestAsk are set for EventTopOfBook; nil means the side is empty.
	BestBid *int64
	BestAsk *int64
}
