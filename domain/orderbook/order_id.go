package orderbook

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	// MaxPrice is the highest price, in ticks, an order may carry.
	MaxPrice uint64 = 1<<32 - 1

	// MaxCounter is the highest order counter a book can issue.
	MaxCounter uint64 = 1<<63 - 1

	bidBit uint64 = 1 << 63
)

// OrderID is a 128-bit market order identifier carried as two words. Hi is
// the price. Lo holds the side bit (set for bids) and a 63-bit counter whose
// bits are complemented for bids.
//
// Comparing ids numerically gives price-time priority: ascending order is
// best-first for asks, descending order is best-first for bids.
type OrderID struct {
	Hi uint64
	Lo uint64
}

// NewOrderID packs side, price and counter into an OrderID.
func NewOrderID(side Side, price, counter uint64) OrderID {
	if side == Bid {
		return OrderID{Hi: price, Lo: bidBit | (^counter & MaxCounter)}
	}
	return OrderID{Hi: price, Lo: counter & MaxCounter}
}

// Price returns the price the order was placed at.
func (id OrderID) Price() uint64 { return id.Hi }

// Side returns the side encoded in the id.
func (id OrderID) Side() Side {
	if id.Lo&bidBit != 0 {
		return Bid
	}
	return Ask
}

// Counter returns the book counter the id was issued with.
func (id OrderID) Counter() uint64 {
	if id.Side() == Bid {
		return ^id.Lo & MaxCounter
	}
	return id.Lo
}

// IsZero reports whether id is the zero value, which no book ever issues.
func (id OrderID) IsZero() bool {
	return id.Hi == 0 && id.Lo == 0
}

// Cmp compares ids as unsigned 128-bit integers.
func (id OrderID) Cmp(other OrderID) int {
	switch {
	case id.Hi < other.Hi:
		return -1
	case id.Hi > other.Hi:
		return 1
	case id.Lo < other.Lo:
		return -1
	case id.Lo > other.Lo:
		return 1
	}
	return 0
}

// Less reports whether id sorts before other.
func (id OrderID) Less(other OrderID) bool {
	return id.Cmp(other) < 0
}

// Bytes returns the big-endian 16-byte encoding of id.
func (id OrderID) Bytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], id.Hi)
	binary.BigEndian.PutUint64(b[8:], id.Lo)
	return b
}

// String returns the id as 32 hex characters.
func (id OrderID) String() string {
	return hex.EncodeToString(id.Bytes())
}

// MarshalText implements encoding.TextMarshaler.
func (id OrderID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *OrderID) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// OrderIDFromBytes decodes the 16-byte encoding produced by Bytes.
func OrderIDFromBytes(b []byte) (OrderID, error) {
	if len(b) != 16 {
		return OrderID{}, fmt.Errorf("order id must be 16 bytes, got %d", len(b))
	}
	return OrderID{
		Hi: binary.BigEndian.Uint64(b[:8]),
		Lo: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

// ParseOrderID decodes the hex form produced by String.
func ParseOrderID(s string) (OrderID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return OrderID{}, fmt.Errorf("decode order id: %w", err)
	}
	return OrderIDFromBytes(b)
}
