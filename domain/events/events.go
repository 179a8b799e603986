// Package events defines the records emitted for off-chain consumers. Every
// committed call yields the maker and taker events needed to rebuild book
// state without reading the book itself.
package events

import (
	"encoding/json"
	"fmt"

	"econia/domain/identity"
	"econia/domain/orderbook"
)

// MakerEventType says what happened to a resting order.
type MakerEventType uint8

const (
	Place MakerEventType = iota
	Change
	Cancel
	Evict
)

var makerEventTypeNames = [...]string{"place", "change", "cancel", "evict"}

func (t MakerEventType) String() string {
	if int(t) < len(makerEventTypeNames) {
		return makerEventTypeNames[t]
	}
	return fmt.Sprintf("MakerEventType(%d)", uint8(t))
}

// MarshalText encodes the type by name.
func (t MakerEventType) MarshalText() ([]byte, error) {
	if int(t) >= len(makerEventTypeNames) {
		return nil, fmt.Errorf("unknown maker event type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name.
func (t *MakerEventType) UnmarshalText(b []byte) error {
	for i, name := range makerEventTypeNames {
		if name == string(b) {
			*t = MakerEventType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown maker event type %q", b)
}

// MakerEvent is emitted when an order rests, changes size, or leaves the book
// other than by a fill. Size is the resting size after a place or change, and
// the size removed for a cancel or evict.
type MakerEvent struct {
	MarketID    uint64             `json:"market_id"`
	Side        orderbook.Side     `json:"side"`
	OrderID     orderbook.OrderID  `json:"order_id"`
	User        identity.AccountID `json:"user"`
	CustodianID uint64             `json:"custodian_id"`
	Type        MakerEventType     `json:"type"`
	Size        uint64             `json:"size"`
	Price       uint64             `json:"price"`
}

// TakerEvent is emitted for every fill. Side is the maker's side.
type TakerEvent struct {
	MarketID         uint64             `json:"market_id"`
	Side             orderbook.Side     `json:"side"`
	MakerOrderID     orderbook.OrderID  `json:"maker_order_id"`
	Maker            identity.AccountID `json:"maker"`
	MakerCustodianID uint64             `json:"maker_custodian_id"`
	Taker            identity.AccountID `json:"taker"`
	TakerCustodianID uint64             `json:"taker_custodian_id"`
	Size             uint64             `json:"size"`
	Price            uint64             `json:"price"`
}

// Kind discriminates the Event envelope.
type Kind string

const (
	KindMaker Kind = "maker"
	KindTaker Kind = "taker"
)

// Event is one maker or taker event in emission order. Exactly one of Maker
// and Taker is set.
type Event struct {
	Kind  Kind        `json:"kind"`
	Maker *MakerEvent `json:"maker,omitempty"`
	Taker *TakerEvent `json:"taker,omitempty"`
}

// FromMaker wraps a MakerEvent.
func FromMaker(e MakerEvent) Event {
	return Event{Kind: KindMaker, Maker: &e}
}

// FromTaker wraps a TakerEvent.
func FromTaker(e TakerEvent) Event {
	return Event{Kind: KindTaker, Taker: &e}
}

// MarketID returns the market the event belongs to.
func (e Event) MarketID() uint64 {
	switch {
	case e.Maker != nil:
		return e.Maker.MarketID
	case e.Taker != nil:
		return e.Taker.MarketID
	}
	return 0
}

// Encode serializes the event for the outbox.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an event produced by Encode.
func Decode(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, err
	}
	switch e.Kind {
	case KindMaker:
		if e.Maker == nil {
			return Event{}, fmt.Errorf("maker event without body")
		}
	case KindTaker:
		if e.Taker == nil {
			return Event{}, fmt.Errorf("taker event without body")
		}
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return e, nil
}
