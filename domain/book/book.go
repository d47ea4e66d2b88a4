package book

import "fmt"

// LevelSummary is one price level of a snapshot: price, aggregate open
// quantity, and the number of resting orders behind it.
type LevelSummary struct {
	Price      int64
	Qty        int64
	OrderCount int
}

// Snapshot is a point-in-time view of one symbol's book, best-first on
// both sides. It is the unit of cross-node propagation.
type Snapshot struct {
	Symbol string
	Seq    uint64
	Bids   []LevelSummary
	Asks   []LevelSummary
}

// OrderBook holds one symbol's resting orders: the locally-submitted
// partition plus last-known mirrors of each peer's partition. Callers
// provide exclusive access per symbol; the book itself is not locked.
type OrderBook struct {
	Symbol string

	bids   *ladder
	asks   *ladder
	orders map[string]*Order

	// seq increments exactly once per committed mutation, even when a
	// single match touches several levels.
	seq uint64
}

func New(symbol string) *OrderBook {
	return &OrderBook{
		Symbol: symbol,
		bids:   newLadder(true),
		asks:   newLadder(false),
		orders: make(map[string]*Order),
	}
}

func (b *OrderBook) Seq() uint64 {
	return b.seq
}

func (b *OrderBook) Contains(id string) bool {
	_, ok := b.orders[id]
	return ok
}

func (b *OrderBook) BestBid() *PriceLevel { return b.bids.best() }
func (b *OrderBook) BestAsk() *PriceLevel { return b.asks.best() }

// BidsWalk visits bid levels best-first.
func (b *OrderBook) BidsWalk(fn func(*PriceLevel)) { b.bids.walk(fn) }

// AsksWalk visits ask levels best-first.
func (b *OrderBook) AsksWalk(fn func(*PriceLevel)) { b.asks.walk(fn) }

// Place runs the incoming order through the matching loop and rests any
// remainder. Fills are returned in execution order with IDs unassigned;
// the engine stamps them.
func (b *OrderBook) Place(o *Order) ([]Fill, error) {
	if err := b.validate(o); err != nil {
		return nil, err
	}
	if _, ok := b.orders[o.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	// Malformed partial state from the wire resets to fully open.
	o.Filled = 0

	var fills []Fill
	opposing := b.asks
	if o.Side == Sell {
		opposing = b.bids
	}

	for o.Remaining() > 0 {
		best := opposing.best()
		if best == nil {
			break
		}
		if o.Side == Buy && best.Price > o.Price {
			break
		}
		if o.Side == Sell && best.Price < o.Price {
			break
		}

		head := best.Head()
		trade := min(o.Remaining(), head.Remaining())

		fill := Fill{
			Symbol: b.Symbol,
			Price:  best.Price,
			Qty:    trade,
			At:     o.SubmittedAt,
		}
		if o.Side == Buy {
			fill.BuyOrderID, fill.BuyUserID = o.ID, o.UserID
			fill.SellOrderID, fill.SellUserID = head.ID, head.UserID
		} else {
			fill.BuyOrderID, fill.BuyUserID = head.ID, head.UserID
			fill.SellOrderID, fill.SellUserID = o.ID, o.UserID
		}

		o.Filled += trade
		b.reduceResting(head, trade)
		fills = append(fills, fill)
	}

	if o.Remaining() > 0 {
		b.rest(o)
	}
	b.seq++
	return fills, nil
}

// Insert rests an order without matching. Used for reconciliation and
// direct book construction; Place is the matching entry point.
func (b *OrderBook) Insert(o *Order) error {
	if err := b.validate(o); err != nil {
		return err
	}
	if _, ok := b.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	b.rest(o)
	b.seq++
	return nil
}

// Reduce decrements an order's remaining quantity, removing it and its
// level when nothing is left.
func (b *OrderBook) Reduce(id string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidOrder
	}
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if qty > o.Remaining() {
		qty = o.Remaining()
	}
	b.reduceResting(o, qty)
	b.seq++
	return nil
}

// Remove takes an order out of the book regardless of owner.
func (b *OrderBook) Remove(id string) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	b.unlink(o)
	b.seq++
	return o, nil
}

// Cancel removes an order if it is owned by userID. Already-emitted
// fills are unaffected.
func (b *OrderBook) Cancel(id, userID string) (*Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if o.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrNotOwner, id)
	}
	b.unlink(o)
	b.seq++
	return o, nil
}

// SnapshotView reads the current state without advancing the sequence
// number, so repeated reads with no intervening mutation are identical.
func (b *OrderBook) SnapshotView() Snapshot {
	snap := Snapshot{Symbol: b.Symbol, Seq: b.seq}
	b.bids.walk(func(lvl *PriceLevel) {
		snap.Bids = append(snap.Bids, LevelSummary{Price: lvl.Price, Qty: lvl.TotalQty, OrderCount: lvl.OrderCount})
	})
	b.asks.walk(func(lvl *PriceLevel) {
		snap.Asks = append(snap.Asks, LevelSummary{Price: lvl.Price, Qty: lvl.TotalQty, OrderCount: lvl.OrderCount})
	})
	return snap
}

// SnapshotOwned reads only the partition reported by origin, walking
// each level's queue and skipping orders mirrored from elsewhere. This
// is the view a node may broadcast: sending the union would hand peers
// their own liquidity back under the sender's id, and each round trip
// would double-count it.
func (b *OrderBook) SnapshotOwned(origin string) Snapshot {
	snap := Snapshot{Symbol: b.Symbol, Seq: b.seq}
	collect := func(out *[]LevelSummary) func(*PriceLevel) {
		return func(lvl *PriceLevel) {
			ls := LevelSummary{Price: lvl.Price}
			for o := lvl.Head(); o != nil; o = o.Next() {
				if o.Origin != origin {
					continue
				}
				ls.Qty += o.Remaining()
				ls.OrderCount++
			}
			if ls.OrderCount > 0 {
				*out = append(*out, ls)
			}
		}
	}
	b.BidsWalk(collect(&snap.Bids))
	b.AsksWalk(collect(&snap.Asks))
	return snap
}

// ReplaceOrigin overwrites one peer's partition of the book with its
// latest reported levels. Orders from other origins, including the
// locally-owned partition, are untouched. Mirrored levels materialize as
// synthetic resting orders so the matching loop can trade through them.
func (b *OrderBook) ReplaceOrigin(origin string, bids, asks []LevelSummary) {
	for _, o := range b.orders {
		if o.Origin == origin {
			b.unlink(o)
		}
	}
	b.mirror(origin, Buy, bids)
	b.mirror(origin, Sell, asks)
	b.seq++
}

func (b *OrderBook) mirror(origin string, side Side, levels []LevelSummary) {
	for _, ls := range levels {
		if ls.Price <= 0 || ls.Qty <= 0 {
			continue
		}
		count := ls.OrderCount
		if count < 1 {
			count = 1
		}
		if int64(count) > ls.Qty {
			count = int(ls.Qty)
		}
		share := ls.Qty / int64(count)
		extra := ls.Qty % int64(count)
		for i := 0; i < count; i++ {
			qty := share
			if int64(i) < extra {
				qty++
			}
			o := &Order{
				ID:     fmt.Sprintf("%s/%s/%d/%d", origin, side, ls.Price, i),
				Symbol: b.Symbol,
				Side:   side,
				Price:  ls.Price,
				Qty:    qty,
				UserID: origin,
				Origin: origin,
			}
			b.rest(o)
		}
	}
}

// ---- internals ----

func (b *OrderBook) validate(o *Order) error {
	if o == nil || o.ID == "" || o.Price <= 0 || o.Qty <= 0 {
		return ErrInvalidOrder
	}
	if o.Side != Buy && o.Side != Sell {
		return ErrInvalidOrder
	}
	return nil
}

func (b *OrderBook) side(s Side) *ladder {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) rest(o *Order) {
	b.side(o.Side).getOrCreate(o.Price).Enqueue(o)
	b.orders[o.ID] = o
}

// reduceResting takes qty lots off a resting order, unlinking it and
// dropping its level when exhausted.
func (b *OrderBook) reduceResting(o *Order, qty int64) {
	lvl := o.level
	o.Filled += qty
	lvl.reduce(qty)
	if o.Remaining() == 0 {
		lvl.Unlink(o)
		delete(b.orders, o.ID)
		if lvl.Empty() {
			b.side(o.Side).drop(lvl.Price)
		}
	}
}

func (b *OrderBook) unlink(o *Order) {
	lvl := o.level
	lvl.Unlink(o)
	delete(b.orders, o.ID)
	if lvl.Empty() {
		b.side(o.Side).drop(lvl.Price)
	}
}
