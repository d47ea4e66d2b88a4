package protocol

import (
	"fmt"

	"github.com/shopspring/decimal"

	"hydra/domain/book"
)

// Codec converts between wire decimals and the engine's integer ticks
// and lots. All nodes in a mesh must share the same scales.
type Codec struct {
	priceScale int32
	qtyScale   int32
}

func NewCodec(priceScale, qtyScale int32) Codec {
	return Codec{priceScale: priceScale, qtyScale: qtyScale}
}

// PriceToTicks parses a decimal price into ticks. Values that are not
// representable at the configured scale, or not strictly positive, are
// rejected.
func (c Codec) PriceToTicks(s string) (int64, error) {
	return c.toUnits(s, c.priceScale)
}

// QtyToLots parses a decimal quantity into lots.
func (c Codec) QtyToLots(s string) (int64, error) {
	return c.toUnits(s, c.qtyScale)
}

func (c Codec) toUnits(s string, scale int32) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", book.ErrInvalidOrder, s)
	}
	shifted := d.Shift(scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: %q exceeds scale %d", book.ErrInvalidOrder, s, scale)
	}
	v := shifted.IntPart()
	if v <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", book.ErrInvalidOrder, s)
	}
	return v, nil
}

// PriceString renders ticks back to the wire representation.
func (c Codec) PriceString(ticks int64) string {
	return decimal.New(ticks, -c.priceScale).String()
}

// QtyString renders lots back to the wire representation.
func (c Codec) QtyString(lots int64) string {
	return decimal.New(lots, -c.qtyScale).String()
}

// LevelsOut converts book levels for publication.
func (c Codec) LevelsOut(in []book.LevelSummary) []PriceLevel {
	out := make([]PriceLevel, 0, len(in))
	for _, ls := range in {
		out = append(out, PriceLevel{
			Price:      c.PriceString(ls.Price),
			Quantity:   c.QtyString(ls.Qty),
			OrderCount: ls.OrderCount,
		})
	}
	return out
}

// LevelsIn converts received levels to book units, skipping entries
// that do not parse; a peer speaking a different scale degrades
// convergence but must not halt local matching.
func (c Codec) LevelsIn(in []PriceLevel) []book.LevelSummary {
	out := make([]book.LevelSummary, 0, len(in))
	for _, pl := range in {
		price, err := c.PriceToTicks(pl.Price)
		if err != nil {
			continue
		}
		qty, err := c.QtyToLots(pl.Quantity)
		if err != nil {
			continue
		}
		out = append(out, book.LevelSummary{Price: price, Qty: qty, OrderCount: pl.OrderCount})
	}
	return out
}

// FillOut converts a fill record for the wire.
func (c Codec) FillOut(f book.Fill) Fill {
	return Fill{
		FillID:      f.ID,
		Symbol:      f.Symbol,
		BuyOrderID:  f.BuyOrderID,
		SellOrderID: f.SellOrderID,
		Price:       c.PriceString(f.Price),
		Quantity:    c.QtyString(f.Qty),
		Timestamp:   f.At,
	}
}

// SnapshotOut converts a book snapshot into a peer update.
func (c Codec) SnapshotOut(origin string, snap book.Snapshot) OrderBookUpdate {
	return OrderBookUpdate{
		Symbol: snap.Symbol,
		Origin: origin,
		Seq:    snap.Seq,
		Bids:   c.LevelsOut(snap.Bids),
		Asks:   c.LevelsOut(snap.Asks),
	}
}
