package outbox

import (
	"testing"
)

func openTest(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestPutGetTransitions(t *testing.T) {
	o := openTest(t)

	if err := o.Put(7, []byte(`{"fill_id":7}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	rec, err := o.Get(7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.State != StateNew || string(rec.Payload) != `{"fill_id":7}` {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if err := o.MarkSent(7); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := o.MarkAcked(7); err != nil {
		t.Fatalf("mark acked: %v", err)
	}
	rec, _ = o.Get(7)
	if rec.State != StateAcked || rec.Retries != 2 || rec.LastAttempt == 0 {
		t.Fatalf("transition bookkeeping wrong: %+v", rec)
	}
}

func TestScanPendingSkipsAcked(t *testing.T) {
	o := openTest(t)
	for id := uint64(1); id <= 3; id++ {
		if err := o.Put(id, []byte{byte(id)}); err != nil {
			t.Fatalf("put %d: %v", id, err)
		}
	}
	if err := o.MarkAcked(2); err != nil {
		t.Fatalf("ack: %v", err)
	}

	var seen []uint64
	err := o.ScanPending(func(id uint64, rec Record) error {
		seen = append(seen, id)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Fatalf("expected [1 3], got %v", seen)
	}
}

func TestSentRecordsAreRevisited(t *testing.T) {
	o := openTest(t)
	_ = o.Put(1, []byte("x"))
	_ = o.MarkSent(1)

	var seen int
	_ = o.ScanPending(func(id uint64, rec Record) error {
		if rec.State != StateSent {
			t.Fatalf("expected SENT, got %v", rec.State)
		}
		seen++
		return nil
	})
	if seen != 1 {
		t.Fatalf("sent record must be rescanned, seen=%d", seen)
	}
}

func TestDelete(t *testing.T) {
	o := openTest(t)
	_ = o.Put(1, []byte("x"))
	if err := o.Delete(1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := o.Get(1); err == nil {
		t.Fatal("deleted record should not be found")
	}
}
