package book

// Side is the direction of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "SELL"
	}
	return "BUY"
}

// Order is a pure domain entity. Only the book mutates Filled.
type Order struct {
	ID     string
	Symbol string
	Side   Side
	Price  int64 // ticks
	Qty    int64 // lots
	Filled int64

	UserID string
	// Origin is the engine that reported the order. Orders submitted to
	// this node carry the local engine id; mirrored peer orders carry the
	// reporting peer's id.
	Origin string
	// SubmittedAt is a caller-supplied logical timestamp. It is carried
	// into fills for audit and never used to re-order resting orders.
	SubmittedAt int64

	next, prev *Order
	level      *PriceLevel
}

func (o *Order) Remaining() int64 {
	return o.Qty - o.Filled
}

// Next walks the level queue in time priority order.
func (o *Order) Next() *Order {
	return o.next
}
