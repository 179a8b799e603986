package matching

import (
	"fmt"

	"econia/domain/events"
	"econia/domain/identity"
	"econia/domain/orderbook"
)

// Restriction limits how a taker order may execute.
type Restriction uint8

const (
	// NoRestriction matches what it can and posts the remainder.
	NoRestriction Restriction = iota
	// FillOrAbort rejects the whole order unless it fills completely.
	FillOrAbort
	// ImmediateOrCancel matches what it can and cancels the remainder.
	ImmediateOrCancel
	// PostOrAbort rejects the order if any of it would match.
	PostOrAbort
)

var restrictionNames = [...]string{"no_restriction", "fill_or_abort", "immediate_or_cancel", "post_or_abort"}

func (r Restriction) String() string {
	if int(r) < len(restrictionNames) {
		return restrictionNames[r]
	}
	return fmt.Sprintf("Restriction(%d)", uint8(r))
}

// Valid reports whether r is a known restriction.
func (r Restriction) Valid() bool {
	return int(r) < len(restrictionNames)
}

// SelfMatch selects what happens when a taker meets a resting order with
// the same owner and custodian.
type SelfMatch uint8

const (
	// SelfMatchAbort rejects the whole call.
	SelfMatchAbort SelfMatch = iota
	// CancelMaker cancels the resting order and keeps matching.
	CancelMaker
	// CancelTaker stops matching and drops the taker's remainder.
	CancelTaker
	// CancelBoth cancels the resting order and then acts as CancelTaker.
	CancelBoth
)

var selfMatchNames = [...]string{"abort", "cancel_maker", "cancel_taker", "cancel_both"}

func (s SelfMatch) String() string {
	if int(s) < len(selfMatchNames) {
		return selfMatchNames[s]
	}
	return fmt.Sprintf("SelfMatch(%d)", uint8(s))
}

// Valid reports whether s is a known behavior.
func (s SelfMatch) Valid() bool {
	return int(s) < len(selfMatchNames)
}

// State is the terminal state of a taker order.
type State uint8

const (
	Initiated State = iota
	Matching
	// Exhausted means liquidity or the limit price ran out with size left.
	Exhausted
	FullyFilled
	// Aborted means the call was rejected, or self match cancelled the
	// taker's remainder.
	Aborted
)

var stateNames = [...]string{"initiated", "matching", "exhausted", "fully_filled", "aborted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Request is a taker intent. Price is ignored for market orders.
type Request struct {
	Actor       identity.Actor
	Side        orderbook.Side
	Size        uint64
	Price       uint64
	Market      bool
	Restriction Restriction
	SelfMatch   SelfMatch
}

// Fill is one match between the taker and a resting order, at the resting
// order's price.
type Fill struct {
	MakerOrderID orderbook.OrderID
	Maker        identity.Actor
	MakerSide    orderbook.Side
	Price        uint64
	Size         uint64
	BaseAmount   uint64
	QuoteAmount  uint64
}

// Result reports what a placement did. OrderID is set only when part of the
// order was posted. CancelledSize is the size neither filled nor posted.
type Result struct {
	OrderID       orderbook.OrderID
	State         State
	FilledAsTaker uint64
	PostedAsMaker uint64
	CancelledSize uint64
	Fills         []Fill
	Events        []events.Event
}

// Outcome reports a cancel or size change. OrderID is the order's id after
// the call, which differs from the original id when an order grows.
type Outcome struct {
	OrderID orderbook.OrderID
	Removed []orderbook.Order
	Events  []events.Event
}
