package protocol

// Message types carried on the /ws/sync stream. Book updates and best
// price advisories are logically independent channels multiplexed over
// one connection.
const (
	MsgBookUpdate = "book_update"
	MsgBestPrice  = "best_price"
)

// Envelope is one frame on the sync stream.
type Envelope struct {
	Type string                 `json:"type"`
	Book *OrderBookUpdate       `json:"book,omitempty"`
	Best *GlobalBestPriceUpdate `json:"best,omitempty"`
}

// PriceLevel is one level of a published snapshot. Prices and
// quantities travel as decimal strings; nodes convert to ticks with the
// shared market scale.
type PriceLevel struct {
	Price      string `json:"price"`
	Quantity   string `json:"quantity"`
	OrderCount int    `json:"order_count"`
}

// OrderBookUpdate is a full snapshot of one symbol's book at the
// originating node. Receivers drop it unless its sequence number is
// strictly greater than the last accepted from the same origin.
type OrderBookUpdate struct {
	Symbol string       `json:"symbol"`
	Origin string       `json:"origin_engine_id"`
	Seq    uint64       `json:"sequence_number"`
	Bids   []PriceLevel `json:"bids"`
	Asks   []PriceLevel `json:"asks"`
}

// GlobalBestPriceUpdate is a best-effort top-of-book advisory. Nil side
// means that side is empty at the origin.
type GlobalBestPriceUpdate struct {
	Symbol  string  `json:"symbol"`
	Origin  string  `json:"origin_engine_id"`
	BestBid *string `json:"best_bid,omitempty"`
	BestAsk *string `json:"best_ask,omitempty"`
}

// ---- client-facing request/response shapes ----

const (
	StatusAccepted  = "ACCEPTED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
	StatusNotFound  = "NOT_FOUND"
	StatusNotOwner  = "NOT_OWNER"
)

type SubmitOrderRequest struct {
	OrderID   string `json:"order_id,omitempty"` // generated when empty
	Symbol    string `json:"symbol"`
	Side      string `json:"side"` // BUY or SELL
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type SubmitOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Fills   []Fill `json:"fills,omitempty"`
	Error   string `json:"error_message,omitempty"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}

type CancelOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Error   string `json:"error_message,omitempty"`
}

type Fill struct {
	FillID      uint64 `json:"fill_id"`
	Symbol      string `json:"symbol"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	Timestamp   int64  `json:"timestamp"`
}

type BookResponse struct {
	Symbol    string       `json:"symbol"`
	Seq       uint64       `json:"sequence_number"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp int64        `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
