package book

// Fill is an immutable, append-only trade record. Price is always the
// resting order's price; price improvement goes to the aggressor.
type Fill struct {
	ID          uint64
	Symbol      string
	BuyOrderID  string
	SellOrderID string
	BuyUserID   string
	SellUserID  string
	Price       int64
	Qty         int64
	// At is the incoming order's logical timestamp, so replaying the same
	// order sequence reproduces identical fills.
	At int64
}
