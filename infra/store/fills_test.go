package store

import (
	"path/filepath"
	"testing"

	"hydra/domain/book"
)

func openTest(t *testing.T) *FillStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "fills.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestSaveAndQuery(t *testing.T) {
	s := openTest(t)
	fills := []book.Fill{
		{ID: 1, Symbol: "BTC", BuyOrderID: "b1", SellOrderID: "s1", BuyUserID: "alice", SellUserID: "bob", Price: 10000, Qty: 5, At: 100},
		{ID: 2, Symbol: "ETH", BuyOrderID: "b2", SellOrderID: "s2", BuyUserID: "carol", SellUserID: "alice", Price: 2000, Qty: 1, At: 101},
	}
	if err := s.Save(fills); err != nil {
		t.Fatalf("save: %v", err)
	}

	rows, err := s.BySymbol("BTC", 10)
	if err != nil {
		t.Fatalf("by symbol: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != 1 || rows[0].Price != 10000 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	rows, err = s.ByUser("alice", 10)
	if err != nil {
		t.Fatalf("by user: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("alice is on both fills, got %+v", rows)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	s := openTest(t)
	fills := []book.Fill{{ID: 1, Symbol: "BTC", Price: 1, Qty: 1}}
	if err := s.Save(fills); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(fills); err != nil {
		t.Fatalf("replayed save must not error: %v", err)
	}
	rows, _ := s.BySymbol("BTC", 10)
	if len(rows) != 1 {
		t.Fatalf("duplicate ids must not duplicate rows: %+v", rows)
	}
}

func TestSaveEmptyIsNoop(t *testing.T) {
	s := openTest(t)
	if err := s.Save(nil); err != nil {
		t.Fatalf("empty save: %v", err)
	}
}
