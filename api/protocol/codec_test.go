package protocol

import (
	"errors"
	"testing"

	"hydra/domain/book"
)

func TestPriceRoundTrip(t *testing.T) {
	c := NewCodec(2, 4)
	ticks, err := c.PriceToTicks("101.25")
	if err != nil {
		t.Fatalf("to ticks: %v", err)
	}
	if ticks != 10125 {
		t.Fatalf("expected 10125 ticks, got %d", ticks)
	}
	if s := c.PriceString(ticks); s != "101.25" {
		t.Fatalf("round trip gave %q", s)
	}
}

func TestRejectsSubTickPrices(t *testing.T) {
	c := NewCodec(2, 4)
	if _, err := c.PriceToTicks("101.255"); !errors.Is(err, book.ErrInvalidOrder) {
		t.Fatalf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestRejectsNonPositive(t *testing.T) {
	c := NewCodec(2, 4)
	for _, s := range []string{"0", "-1.5", "abc", ""} {
		if _, err := c.PriceToTicks(s); !errors.Is(err, book.ErrInvalidOrder) {
			t.Fatalf("%q: expected ErrInvalidOrder, got %v", s, err)
		}
	}
}

func TestLevelsInSkipsUnparseable(t *testing.T) {
	c := NewCodec(2, 4)
	in := []PriceLevel{
		{Price: "100.00", Quantity: "1.5", OrderCount: 2},
		{Price: "bogus", Quantity: "1", OrderCount: 1},
		{Price: "99.50", Quantity: "-3", OrderCount: 1},
	}
	out := c.LevelsIn(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 usable level, got %+v", out)
	}
	if out[0].Price != 10000 || out[0].Qty != 15000 || out[0].OrderCount != 2 {
		t.Fatalf("unexpected conversion: %+v", out[0])
	}
}

func TestSnapshotOut(t *testing.T) {
	c := NewCodec(2, 0)
	snap := book.Snapshot{
		Symbol: "BTC",
		Seq:    9,
		Bids:   []book.LevelSummary{{Price: 9900, Qty: 5, OrderCount: 1}},
		Asks:   []book.LevelSummary{{Price: 10100, Qty: 3, OrderCount: 2}},
	}
	u := c.SnapshotOut("engine-1", snap)
	if u.Origin != "engine-1" || u.Seq != 9 || u.Symbol != "BTC" {
		t.Fatalf("header wrong: %+v", u)
	}
	if u.Bids[0].Price != "99" || u.Asks[0].Price != "101" || u.Asks[0].OrderCount != 2 {
		t.Fatalf("levels wrong: %+v", u)
	}
}
