package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"hydra/api/protocol"
	"hydra/domain/book"
	"hydra/engine"
	"hydra/infra/outbox"
	"hydra/infra/store"
)

// FillSink receives executed fills for live distribution. The websocket
// layer implements it; nil disables live fill streaming.
type FillSink interface {
	PublishFill(protocol.Fill)
}

/*
OrderService is the only write entry point into the system.

All coordination between:
- engine (matching)
- store (fill history)
- outbox (durable fill delivery)
- live fill streaming
happens here.
*/
type OrderService struct {
	engine *engine.Engine
	codec  protocol.Codec
	fills  *store.FillStore
	outbox *outbox.Outbox
	sink   FillSink
	log    *slog.Logger
}

// NewOrderService wires all dependencies. fills, ob, and sink may be
// nil; the corresponding side effects are skipped.
func NewOrderService(
	eng *engine.Engine,
	codec protocol.Codec,
	fills *store.FillStore,
	ob *outbox.Outbox,
	sink FillSink,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		engine: eng,
		codec:  codec,
		fills:  fills,
		outbox: ob,
		sink:   sink,
		log:    log,
	}
}

// Submit validates, converts, and executes one order. Rejections are
// reported in the response status rather than as errors; an error
// return means the request never reached the engine.
func (s *OrderService) Submit(req protocol.SubmitOrderRequest) protocol.SubmitOrderResponse {
	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	side, err := parseSide(req.Side)
	if err != nil {
		return rejected(orderID, err)
	}
	price, err := s.codec.PriceToTicks(req.Price)
	if err != nil {
		return rejected(orderID, err)
	}
	qty, err := s.codec.QtyToLots(req.Quantity)
	if err != nil {
		return rejected(orderID, err)
	}
	if req.Symbol == "" || req.UserID == "" {
		return rejected(orderID, book.ErrInvalidOrder)
	}

	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().UnixNano()
	}

	o := &book.Order{
		ID:          orderID,
		Symbol:      req.Symbol,
		Side:        side,
		Price:       price,
		Qty:         qty,
		UserID:      req.UserID,
		SubmittedAt: ts,
	}

	fills, _, err := s.engine.Submit(o)
	if err != nil {
		return rejected(orderID, err)
	}

	out := make([]protocol.Fill, 0, len(fills))
	for _, f := range fills {
		out = append(out, s.codec.FillOut(f))
	}
	s.recordFills(fills, out)

	return protocol.SubmitOrderResponse{
		OrderID: orderID,
		Status:  protocol.StatusAccepted,
		Fills:   out,
	}
}

// Cancel removes a resting order owned by the requesting user.
func (s *OrderService) Cancel(req protocol.CancelOrderRequest) protocol.CancelOrderResponse {
	err := s.engine.Cancel(req.OrderID, req.UserID)
	switch {
	case err == nil:
		return protocol.CancelOrderResponse{OrderID: req.OrderID, Status: protocol.StatusCancelled}
	case errors.Is(err, book.ErrNotOwner):
		return protocol.CancelOrderResponse{
			OrderID: req.OrderID,
			Status:  protocol.StatusNotOwner,
			Error:   err.Error(),
		}
	default:
		return protocol.CancelOrderResponse{
			OrderID: req.OrderID,
			Status:  protocol.StatusNotFound,
			Error:   err.Error(),
		}
	}
}

// Book returns the merged view of one symbol's book.
func (s *OrderService) Book(symbol string) (protocol.BookResponse, error) {
	snap, err := s.engine.Snapshot(symbol)
	if err != nil {
		return protocol.BookResponse{}, err
	}
	return protocol.BookResponse{
		Symbol:    snap.Symbol,
		Seq:       snap.Seq,
		Bids:      s.codec.LevelsOut(snap.Bids),
		Asks:      s.codec.LevelsOut(snap.Asks),
		Timestamp: time.Now().UnixNano(),
	}, nil
}

// FillHistory returns recorded fills for a symbol, newest first.
func (s *OrderService) FillHistory(symbol string, limit int) ([]store.FillRow, error) {
	if s.fills == nil {
		return nil, nil
	}
	return s.fills.BySymbol(symbol, limit)
}

// FillHistoryByUser returns fills the user participated in, either side.
func (s *OrderService) FillHistoryByUser(userID string, limit int) ([]store.FillRow, error) {
	if s.fills == nil {
		return nil, nil
	}
	return s.fills.ByUser(userID, limit)
}

// recordFills persists and distributes executed fills. Failures here
// must not fail the order: the match already happened.
func (s *OrderService) recordFills(fills []book.Fill, wire []protocol.Fill) {
	if len(fills) == 0 {
		return
	}
	if s.fills != nil {
		if err := s.fills.Save(fills); err != nil {
			s.log.Error("fill persistence failed", "err", err)
		}
	}
	if s.outbox != nil {
		for _, f := range wire {
			payload, err := json.Marshal(f)
			if err != nil {
				continue
			}
			if err := s.outbox.Put(f.FillID, payload); err != nil {
				s.log.Error("outbox write failed", "fill_id", f.FillID, "err", err)
			}
		}
	}
	if s.sink != nil {
		for _, f := range wire {
			s.sink.PublishFill(f)
		}
	}
}

func rejected(orderID string, err error) protocol.SubmitOrderResponse {
	return protocol.SubmitOrderResponse{
		OrderID: orderID,
		Status:  protocol.StatusRejected,
		Error:   err.Error(),
	}
}

func parseSide(s string) (book.Side, error) {
	switch strings.ToUpper(s) {
	case "BUY", "BID":
		return book.Buy, nil
	case "SELL", "ASK":
		return book.Sell, nil
	default:
		return 0, errors.New("side must be BUY or SELL")
	}
}
