// Package outbox is durable bookkeeping for the fill feed: every fill
// is recorded before publication and marked off once the broker
// accepts it, so a crashed broadcaster resumes where it stopped.
// Order book state itself is never persisted.
package outbox

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// encoding: [state:1][retries:4][lastAttempt:8][payload...]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 1+4+8+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, errors.New("outbox record too short")
	}
	payload := make([]byte, len(b)-13)
	copy(payload, b[13:])
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     payload,
	}, nil
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Put records a new fill payload awaiting publication.
func (o *Outbox) Put(fillID uint64, payload []byte) error {
	rec := Record{State: StateNew, Payload: payload}
	return o.db.Set(keyFor(fillID), encodeRecord(rec), pebble.Sync)
}

// MarkSent flags a record as handed to the broker but not yet accepted.
func (o *Outbox) MarkSent(fillID uint64) error {
	return o.transition(fillID, StateSent)
}

// MarkAcked flags a record as accepted by the broker.
func (o *Outbox) MarkAcked(fillID uint64) error {
	return o.transition(fillID, StateAcked)
}

func (o *Outbox) transition(fillID uint64, state State) error {
	rec, err := o.Get(fillID)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries++
	rec.LastAttempt = time.Now().UnixNano()
	return o.db.Set(keyFor(fillID), encodeRecord(rec), pebble.Sync)
}

// Delete removes an acked record during cleanup.
func (o *Outbox) Delete(fillID uint64) error {
	return o.db.Delete(keyFor(fillID), pebble.Sync)
}

func (o *Outbox) Get(fillID uint64) (Record, error) {
	val, closer, err := o.db.Get(keyFor(fillID))
	if err != nil {
		return Record{}, err
	}
	defer closer.Close()
	return decodeRecord(val)
}

// ScanPending visits every record not yet acked, oldest fill first.
// Sent-but-unacked records are revisited so a crash between send and
// ack retries rather than loses.
func (o *Outbox) ScanPending(fn func(fillID uint64, rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("fill/"),
		UpperBound: []byte("fill/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State == StateAcked {
			continue
		}
		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(id, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(fillID uint64) []byte {
	return []byte(fmt.Sprintf("fill/%020d", fillID))
}

func parseKey(b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(b), "fill/%d", &id)
	return id, err
}
