package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"hydra/domain/book"
	"hydra/infra/sequence"
)

// Engine owns one order book per symbol and is the only component that
// mutates them. Each symbol is guarded by its own shard mutex: a submit
// runs its whole matching loop under the lock, so concurrent cancels and
// inbound peer merges for the same symbol land fully before or fully
// after it. Different symbols proceed in parallel.
type Engine struct {
	id   string
	seqr *sequence.Sequencer
	log  *slog.Logger

	mu      sync.RWMutex
	shards  map[string]*shard
	bySym   map[string]string // order id -> symbol, for symbol-less cancel
	indexMu sync.Mutex

	events chan Event
}

type shard struct {
	mu   sync.Mutex
	book *book.OrderBook
}

func New(id string, seqr *sequence.Sequencer, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		id:     id,
		seqr:   seqr,
		log:    log,
		shards: make(map[string]*shard),
		bySym:  make(map[string]string),
		events: make(chan Event, 256),
	}
}

// ID is the engine identifier stamped on outbound updates.
func (e *Engine) ID() string { return e.id }

// Events is the outbound queue drained by the synchronizer.
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) shardFor(symbol string, create bool) *shard {
	e.mu.RLock()
	sh, ok := e.shards[symbol]
	e.mu.RUnlock()
	if ok || !create {
		return sh
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if sh, ok = e.shards[symbol]; ok {
		return sh
	}
	sh = &shard{book: book.New(symbol)}
	e.shards[symbol] = sh
	return sh
}

// Submit runs the matching algorithm for one incoming order and returns
// the fills it produced plus the post-state sequence number. The
// remainder, if any, rests on the order's own side.
func (e *Engine) Submit(o *book.Order) ([]book.Fill, uint64, error) {
	if o == nil || o.Symbol == "" || o.ID == "" || o.Price <= 0 || o.Qty <= 0 {
		return nil, 0, book.ErrInvalidOrder
	}
	if o.Side != book.Buy && o.Side != book.Sell {
		return nil, 0, book.ErrInvalidOrder
	}
	// The id index spans symbols; an id resting on another symbol would
	// be silently repointed and become uncancellable there.
	e.indexMu.Lock()
	if sym, ok := e.bySym[o.ID]; ok && sym != o.Symbol {
		e.indexMu.Unlock()
		return nil, 0, fmt.Errorf("%w: %s rests on %s", book.ErrDuplicateOrder, o.ID, sym)
	}
	e.indexMu.Unlock()
	if o.Origin == "" {
		o.Origin = e.id
	}
	sh := e.shardFor(o.Symbol, true)

	sh.mu.Lock()
	prevBid, prevAsk := topOfBook(sh.book)
	fills, err := sh.book.Place(o)
	if err != nil {
		sh.mu.Unlock()
		return nil, 0, err
	}
	for i := range fills {
		fills[i].ID = e.seqr.Next()
	}
	seq := sh.book.Seq()
	var snap book.Snapshot
	if len(fills) > 0 {
		// Broadcast only the locally-owned partition; mirrored peer
		// liquidity must never travel under this engine's id.
		snap = sh.book.SnapshotOwned(e.id)
	}
	curBid, curAsk := topOfBook(sh.book)
	sh.mu.Unlock()

	e.reindex(o.Symbol, o, fills)

	if len(fills) > 0 {
		e.emit(Event{Kind: EventBookChanged, Symbol: o.Symbol, Book: snap})
	}
	if topMoved(prevBid, curBid) || topMoved(prevAsk, curAsk) {
		e.emit(Event{Kind: EventTopOfBook, Symbol: o.Symbol, BestBid: curBid, BestAsk: curAsk})
	}
	return fills, seq, nil
}

// Cancel removes a resting order owned by userID. The order id alone
// identifies it; the engine tracks which symbol it rests on.
func (e *Engine) Cancel(orderID, userID string) error {
	e.indexMu.Lock()
	symbol, ok := e.bySym[orderID]
	e.indexMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", book.ErrOrderNotFound, orderID)
	}
	sh := e.shardFor(symbol, false)
	if sh == nil {
		return fmt.Errorf("%w: %s", book.ErrOrderNotFound, orderID)
	}

	sh.mu.Lock()
	prevBid, prevAsk := topOfBook(sh.book)
	_, err := sh.book.Cancel(orderID, userID)
	curBid, curAsk := topOfBook(sh.book)
	sh.mu.Unlock()
	if err != nil {
		return err
	}

	e.indexMu.Lock()
	delete(e.bySym, orderID)
	e.indexMu.Unlock()

	if topMoved(prevBid, curBid) || topMoved(prevAsk, curAsk) {
		e.emit(Event{Kind: EventTopOfBook, Symbol: symbol, BestBid: curBid, BestAsk: curAsk})
	}
	return nil
}

// Snapshot returns the current union view of a symbol's book.
func (e *Engine) Snapshot(symbol string) (book.Snapshot, error) {
	sh := e.shardFor(symbol, false)
	if sh == nil {
		return book.Snapshot{}, fmt.Errorf("%w: %s", book.ErrUnknownSymbol, symbol)
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.book.SnapshotView(), nil
}

// Merge folds a peer's reported book into the local one by replacing
// that origin's partition. Staleness is the synchronizer's concern;
// by the time Merge runs the update has been accepted.
func (e *Engine) Merge(symbol, origin string, bids, asks []book.LevelSummary) {
	sh := e.shardFor(symbol, true)

	sh.mu.Lock()
	prevBid, prevAsk := topOfBook(sh.book)
	sh.book.ReplaceOrigin(origin, bids, asks)
	curBid, curAsk := topOfBook(sh.book)
	sh.mu.Unlock()

	if topMoved(prevBid, curBid) || topMoved(prevAsk, curAsk) {
		e.emit(Event{Kind: EventTopOfBook, Symbol: symbol, BestBid: curBid, BestAsk: curAsk})
	}
}

// Symbols lists symbols with live books.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.shards))
	for s := range e.shards {
		out = append(out, s)
	}
	return out
}

// ---- internals ----

// reindex keeps the order-id -> symbol map in step with the book after a
// submit: the incoming order if it rested, minus everything a fill
// consumed.
func (e *Engine) reindex(symbol string, o *book.Order, fills []book.Fill) {
	sh := e.shardFor(symbol, false)
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	touched := make([]string, 0, 2*len(fills)+1)
	touched = append(touched, o.ID)
	for _, f := range fills {
		touched = append(touched, f.BuyOrderID, f.SellOrderID)
	}
	sh.mu.Lock()
	for _, id := range touched {
		if sh.book.Contains(id) {
			e.bySym[id] = symbol
		} else {
			delete(e.bySym, id)
		}
	}
	sh.mu.Unlock()
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.log.Warn("event queue full, dropping", "kind", ev.Kind, "symbol", ev.Symbol)
	}
}

func topOfBook(b *book.OrderBook) (bid, ask *int64) {
	if lvl := b.BestBid(); lvl != nil {
		p := lvl.Price
		bid = &p
	}
	if lvl := b.BestAsk(); lvl != nil {
		p := lvl.Price
		ask = &p
	}
	return bid, ask
}

func topMoved(prev, cur *int64) bool {
	if (prev == nil) != (cur == nil) {
		return true
	}
	if prev == nil {
		return false
	}
	return *prev != *cur
}
