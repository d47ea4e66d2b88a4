package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"hydra/api/protocol"
	"hydra/domain/book"
	"hydra/engine"
)

// Publisher receives outbound envelopes. Implementations must not
// block the synchronizer loop for long; delivery is fire-and-forget.
type Publisher interface {
	Publish(ctx context.Context, env protocol.Envelope) error
}

// Synchronizer sits between the local engine and the rest of the mesh.
type Synchronizer struct {
	engineID string
	engine   *engine.Engine
	codec    protocol.Codec
	pubs     []Publisher
	best     *BestPriceCache
	log      *slog.Logger

	mu       sync.Mutex
	accepted map[string]uint64 // origin|symbol -> last accepted seq
}

func New(eng *engine.Engine, codec protocol.Codec, log *slog.Logger, pubs ...Publisher) *Synchronizer {
	if log == nil {
		log = slog.Default()
	}
	return &Synchronizer{
		engineID: eng.ID(),
		engine:   eng,
		codec:    codec,
		pubs:     pubs,
		best:     NewBestPriceCache(),
		log:      log,
		accepted: make(map[string]uint64),
	}
}

// BestPrices exposes the fleet-wide advisory cache.
func (s *Synchronizer) BestPrices() *BestPriceCache { return s.best }

// Run drains the engine's event queue until ctx is done. Each event is
// converted once and pushed to every publisher.
func (s *Synchronizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.engine.Events():
			s.dispatch(ctx, ev)
		}
	}
}

func (s *Synchronizer) dispatch(ctx context.Context, ev engine.Event) {
	var env protocol.Envelope
	switch ev.Kind {
	case engine.EventBookChanged:
		update := s.codec.SnapshotOut(s.engineID, ev.Book)
		env = protocol.Envelope{Type: protocol.MsgBookUpdate, Book: &update}
	case engine.EventTopOfBook:
		update := protocol.GlobalBestPriceUpdate{Symbol: ev.Symbol, Origin: s.engineID}
		if ev.BestBid != nil {
			p := s.codec.PriceString(*ev.BestBid)
			update.BestBid = &p
		}
		if ev.BestAsk != nil {
			p := s.codec.PriceString(*ev.BestAsk)
			update.BestAsk = &p
		}
		// Our own top-of-book belongs in the fleet view too.
		s.best.Put(BestPrice(update))
		env = protocol.Envelope{Type: protocol.MsgBestPrice, Best: &update}
	default:
		return
	}

	for _, p := range s.pubs {
		if err := p.Publish(ctx, env); err != nil {
			s.log.Warn("publish failed, dropping", "type", env.Type, "symbol", ev.Symbol, "error", err)
		}
	}
}

// ApplyBookUpdate reconciles a peer snapshot into the local book. A
// sequence number that is not strictly greater than the last accepted
// from that origin for that symbol is a stale or re-delivered update
// and is dropped without touching local state.
func (s *Synchronizer) ApplyBookUpdate(u protocol.OrderBookUpdate) error {
	if u.Symbol == "" || u.Origin == "" {
		return book.ErrInvalidOrder
	}
	if u.Origin == s.engineID {
		// Our own update reflected back; nothing to fold in.
		return nil
	}

	key := u.Origin + "|" + u.Symbol
	s.mu.Lock()
	last, ok := s.accepted[key]
	if ok && u.Seq <= last {
		s.mu.Unlock()
		return fmt.Errorf("%w: origin %s symbol %s seq %d <= %d", book.ErrStaleUpdate, u.Origin, u.Symbol, u.Seq, last)
	}
	s.accepted[key] = u.Seq
	s.mu.Unlock()

	s.engine.Merge(u.Symbol, u.Origin, s.codec.LevelsIn(u.Bids), s.codec.LevelsIn(u.Asks))
	return nil
}

// ApplyBestPrice folds a peer advisory into the last-writer-wins cache.
func (s *Synchronizer) ApplyBestPrice(u protocol.GlobalBestPriceUpdate) {
	if u.Symbol == "" || u.Origin == "" || u.Origin == s.engineID {
		return
	}
	s.best.Put(BestPrice(u))
}

// HandleEnvelope routes one inbound frame from a peer stream.
func (s *Synchronizer) HandleEnvelope(env protocol.Envelope) {
	switch env.Type {
	case protocol.MsgBookUpdate:
		if env.Book == nil {
			return
		}
		if err := s.ApplyBookUpdate(*env.Book); err != nil {
			s.log.Debug("dropped book update", "origin", env.Book.Origin, "symbol", env.Book.Symbol, "error", err)
		}
	case protocol.MsgBestPrice:
		if env.Best == nil {
			return
		}
		s.ApplyBestPrice(*env.Best)
	}
}
