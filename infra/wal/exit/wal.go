// Package exit is the event outbox. Events produced by a committed command
// are stored here under the command's entry sequence and drained to the
// message bus by the broadcaster, which records each delivery attempt.
package exit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Key --------------------

// Key orders outbox entries by the entry sequence of the command that
// produced them, then by position within that command's events.
type Key struct {
	Seq   uint64
	Index uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Seq, k.Index)
}

const keyPrefix = "event/"

func (k Key) bytes() []byte {
	b := make([]byte, len(keyPrefix)+8+4)
	copy(b, keyPrefix)
	binary.BigEndian.PutUint64(b[len(keyPrefix):], k.Seq)
	binary.BigEndian.PutUint32(b[len(keyPrefix)+8:], k.Index)
	return b
}

func parseKey(b []byte) (Key, error) {
	if len(b) != len(keyPrefix)+12 || string(b[:len(keyPrefix)]) != keyPrefix {
		return Key{}, fmt.Errorf("invalid exit key %x", b)
	}
	return Key{
		Seq:   binary.BigEndian.Uint64(b[len(keyPrefix):]),
		Index: binary.BigEndian.Uint32(b[len(keyPrefix)+8:]),
	}, nil
}

// -------------------- Record --------------------

type ExitRecord struct {
	Key         Key
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
const recordHeader = 1 + 4 + 8

func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHeader+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHeader:], r.Payload)
	return buf
}

func decodeRecord(k Key, b []byte) (ExitRecord, error) {
	if len(b) < recordHeader {
		return ExitRecord{}, errors.New("invalid exit record length")
	}
	return ExitRecord{
		Key:         k,
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHeader:]...),
	}, nil
}

// -------------------- WAL --------------------

type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false,
	})
	if err != nil {
		return nil, err
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// Append stores the events of the command at seq as NEW entries in one
// batch. Entries that already exist keep their state, so re-appending a
// replayed command never re-sends what was delivered.
func (w *ExitWAL) Append(seq uint64, payloads [][]byte) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}
	b := w.db.NewBatch()
	defer b.Close()

	added := 0
	for i, p := range payloads {
		k := Key{Seq: seq, Index: uint32(i)}
		_, closer, err := w.db.Get(k.bytes())
		if err == nil {
			_ = closer.Close()
			continue
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return 0, err
		}
		if err := b.Set(k.bytes(), encodeRecord(ExitRecord{State: StateNew, Payload: p}), nil); err != nil {
			return 0, err
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, b.Commit(pebble.Sync)
}

// UpdateState records a delivery attempt.
func (w *ExitWAL) UpdateState(k Key, state ExitState, retries uint32) error {
	rec, err := w.Get(k)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return w.db.Set(k.bytes(), encodeRecord(rec), pebble.Sync)
}

func (w *ExitWAL) MarkSent(k Key) error {
	rec, err := w.Get(k)
	if err != nil {
		return err
	}
	return w.UpdateState(k, StateSent, rec.Retries)
}

func (w *ExitWAL) MarkAcked(k Key) error {
	rec, err := w.Get(k)
	if err != nil {
		return err
	}
	return w.UpdateState(k, StateAcked, rec.Retries)
}

// MarkFailed records a failed attempt and returns the new retry count.
func (w *ExitWAL) MarkFailed(k Key) (uint32, error) {
	rec, err := w.Get(k)
	if err != nil {
		return 0, err
	}
	return rec.Retries + 1, w.UpdateState(k, StateFailed, rec.Retries+1)
}

// Delete removes an entry.
func (w *ExitWAL) Delete(k Key) error {
	return w.db.Delete(k.bytes(), pebble.Sync)
}

// Get returns the current record for k.
func (w *ExitWAL) Get(k Key) (ExitRecord, error) {
	val, closer, err := w.db.Get(k.bytes())
	if err != nil {
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(k, val)
}

// -------------------- Scan --------------------

// Scan iterates every record in key order until fn returns false or an
// error.
func (w *ExitWAL) Scan(fn func(rec ExitRecord) (bool, error)) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("event0"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		k, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		rec, err := decodeRecord(k, iter.Value())
		if err != nil {
			return err
		}
		more, err := fn(rec)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

// ScanByState iterates all records in the given state.
func (w *ExitWAL) ScanByState(state ExitState, fn func(rec ExitRecord) error) error {
	return w.Scan(func(rec ExitRecord) (bool, error) {
		if rec.State != state {
			return true, nil
		}
		return true, fn(rec)
	})
}

// Pending returns up to limit records still to be delivered, in key order:
// NEW records, SENT records left behind by a crash, and FAILED records with
// fewer than maxRetries attempts. A limit of zero means no limit.
func (w *ExitWAL) Pending(limit int, maxRetries uint32) ([]ExitRecord, error) {
	var out []ExitRecord
	err := w.Scan(func(rec ExitRecord) (bool, error) {
		switch rec.State {
		case StateAcked:
			return true, nil
		case StateFailed:
			if maxRetries > 0 && rec.Retries >= maxRetries {
				return true, nil
			}
		}
		out = append(out, rec)
		return limit == 0 || len(out) < limit, nil
	})
	return out, err
}

// TruncateAckedUpTo deletes ACKED records produced by commands up to seq.
func (w *ExitWAL) TruncateAckedUpTo(seq uint64) (int, error) {
	b := w.db.NewBatch()
	defer b.Close()

	n := 0
	err := w.Scan(func(rec ExitRecord) (bool, error) {
		if rec.Key.Seq > seq {
			return false, nil
		}
		if rec.State != StateAcked {
			return true, nil
		}
		n++
		return true, b.Delete(rec.Key.bytes(), nil)
	})
	if err != nil || n == 0 {
		return 0, err
	}
	return n, b.Commit(pebble.Sync)
}
